// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package enrich joins harvested records against locally maintained
// reference tables, e.g. the subnet to site mapping of a fleet.
package enrich

import (
	"encoding/binary"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultMaskLen is the subnet size assumed when none is configured, the
// usual /24 office network.
const DefaultMaskLen = 24

// ParseIPv4 parses a dotted quad into its integer form. Everything that
// is not a plain IPv4 address is rejected, including leading zero octets.
func ParseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, errors.Newf("invalid IPv4 address: %s", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, errors.Newf("not an IPv4 address: %s", s)
	}
	return binary.BigEndian.Uint32(v4), nil
}

// Mask returns the network mask for a prefix length in integer form.
func Mask(maskLen int) uint32 {
	if maskLen <= 0 {
		return 0
	}
	if maskLen >= 32 {
		return ^uint32(0)
	}
	return ^uint32(0) << (32 - maskLen)
}

// SameSubnet reports whether two addresses share the network of the given
// mask length, compared as masked integers.
func SameSubnet(a, base uint32, maskLen int) bool {
	mask := Mask(maskLen)
	return a&mask == base&mask
}

// PrefixMatch is the literal string shortcut, candidate "10.120.26.55"
// matches prefix "10.120.26.". It agrees with a /24 masked compare for
// octet aligned prefixes and cannot express other mask lengths.
func PrefixMatch(candidate, prefix string) bool {
	return prefix != "" && strings.HasPrefix(candidate, prefix)
}
