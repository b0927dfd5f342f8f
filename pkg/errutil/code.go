// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package errutil

import "github.com/samber/oops"

// Code returns the string code carried by an oops error, or "" when err has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string) //nolint:errcheck // type assertion, not an error
	return code
}
