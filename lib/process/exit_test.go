// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/pflag"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"help", pflag.ErrHelp, ExitOK},
		{"wrapped help", fmt.Errorf("parsing flags: %w", pflag.ErrHelp), ExitOK},
		{"usage", Usagef("unexpected argument %q", "extra"), ExitUsage},
		{"wrapped usage", fmt.Errorf("xtypes-lookupd: %w", Usage(errors.New("no schemas"))), ExitUsage},
		{"failure", errors.New("opening library: disk full"), ExitFailure},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ExitCode(test.err); got != test.want {
				t.Errorf("ExitCode(%v) = %d, want %d", test.err, got, test.want)
			}
		})
	}
}

func TestReport(t *testing.T) {
	var output bytes.Buffer
	if code := Report(&output, pflag.ErrHelp); code != ExitOK || output.Len() != 0 {
		t.Errorf("Report(ErrHelp) = %d with output %q, want 0 and no output", code, output.String())
	}

	if code := Report(&output, Usagef("bad flag")); code != ExitUsage {
		t.Errorf("Report(usage) = %d, want %d", code, ExitUsage)
	}
	if got := output.String(); got != "error: bad flag\n" {
		t.Errorf("Report wrote %q", got)
	}

	if Usage(nil) != nil {
		t.Error("Usage(nil) should be nil")
	}
}
