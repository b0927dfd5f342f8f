// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

//go:build tools
// +build tools

// Package main pins test dependencies that are only referenced from build
// tagged files, so "go mod tidy" without tags keeps them.
package main

import (
	// Integration suites (//go:build integration)
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"

	// Generated mocks
	_ "github.com/stretchr/testify/mock"
)
