// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/radluki/pkss-communication/internal/client"
)

// repeatedStrings collects every occurrence of a flag passed multiple
// times, e.g. "-r a -r b -r c", into a slice — the stdlib flag package has
// no built-in multi-value flag type.
type repeatedStrings []string

func (r *repeatedStrings) String() string {
	return fmt.Sprint([]string(*r))
}

func (r *repeatedStrings) Set(value string) error {
	*r = append(*r, value)
	return nil
}

func main() {
	var requested repeatedStrings
	flag.Var(&requested, "r", "a requested variable name; repeat for multiple")
	dataFile := flag.String("f", "", "path to a JSON file containing the data payload")
	dataInline := flag.String("s", "", "inline JSON data payload; ignored if -f is also given")
	dialTimeout := flag.Duration("dial-timeout", 5*time.Second, "TCP dial timeout")
	flag.Parse()

	if flag.NArg() < 3 {
		fmt.Fprintln(os.Stderr, "usage: pkss-client [flags] <ip> <port> <outputfile>")
		os.Exit(1)
	}
	ip := flag.Arg(0)
	portArg := flag.Arg(1)
	outputFile := flag.Arg(2)

	port, err := strconv.Atoi(portArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", portArg, err)
		os.Exit(1)
	}

	if *dataFile != "" && *dataInline != "" {
		fmt.Fprintln(os.Stderr, "warning: -s is ignored because -f was also given")
	}

	data, err := loadData(*dataFile, *dataInline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data payload: %v\n", err)
		os.Exit(1)
	}

	c := client.New(net.JoinHostPort(ip, strconv.Itoa(port)), *dialTimeout)
	reply, err := c.Exchange(data, requested)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Exchange failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding reply: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputFile, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
}

func loadData(filePath, inline string) (map[string]float64, error) {
	var raw []byte
	switch {
	case filePath != "":
		b, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filePath, err)
		}
		raw = b
	case inline != "":
		raw = []byte(inline)
	default:
		return map[string]float64{}, nil
	}

	var data map[string]float64
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing data payload: %w", err)
	}
	return data, nil
}
