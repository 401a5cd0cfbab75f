// Package testing groups test helpers for code built on go-bricks-tx.
//
// The mocks subpackage provides testify mocks of the storage engine and the
// transaction manager. The containers subpackage starts a single-node MongoDB
// replica set with testcontainers for tests built with the integration tag:
//
//	go test -tags=integration ./...
package testing
