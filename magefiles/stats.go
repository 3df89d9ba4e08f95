// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/sh"
)

// listFormat prints one package per line: import path, directory, source
// files and test files.
const listFormat = `{{.ImportPath}}|{{.Dir}}|{{join .GoFiles ","}}|{{join .TestGoFiles ","}},{{join .XTestGoFiles ","}}`

type packageStats struct {
	Package string `json:"package"`
	Prod    int    `json:"prod"`
	Test    int    `json:"test"`
}

// Stats prints Go line counts per package as JSON lines, then a total.
// Integration tests count as tests of their package.
func Stats() error {
	out, err := sh.Output(binGo, "list", "-f", listFormat, "./...")
	if err != nil {
		return err
	}

	var total packageStats
	total.Package = "total"
	enc := json.NewEncoder(os.Stdout)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			continue
		}
		ps := packageStats{Package: strings.TrimPrefix(parts[0], modulePath+"/")}
		if ps.Prod, err = sumLines(parts[1], parts[2]); err != nil {
			return err
		}
		if ps.Test, err = sumLines(parts[1], parts[3]); err != nil {
			return err
		}
		total.Prod += ps.Prod
		total.Test += ps.Test
		if err := enc.Encode(ps); err != nil {
			return err
		}
	}
	if err := enc.Encode(total); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d prod + %d test lines\n", total.Prod, total.Test)
	return nil
}

// sumLines counts newlines across the comma-separated files in dir.
func sumLines(dir, files string) (int, error) {
	n := 0
	for _, name := range strings.Split(files, ",") {
		if name == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, err
		}
		n += bytes.Count(data, []byte("\n"))
	}
	return n, nil
}
