//go:build !linux

package ble

import (
	"context"
	"errors"
)

var errNoBlueZ = errors.New("ble: the bluez backend is only available on Linux")

// BlueZAdapter is unavailable outside Linux; use TinyGoAdapter.
type BlueZAdapter struct{}

// NewBlueZAdapter always fails outside Linux.
func NewBlueZAdapter(string) (*BlueZAdapter, error) {
	return nil, errNoBlueZ
}

func (a *BlueZAdapter) Close() error { return nil }

func (a *BlueZAdapter) Enable() error { return errNoBlueZ }

func (a *BlueZAdapter) Scan(context.Context, string) ([]Device, error) {
	return nil, errNoBlueZ
}

func (a *BlueZAdapter) Connect(context.Context, string) (Connection, error) {
	return nil, errNoBlueZ
}
