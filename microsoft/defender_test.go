// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package microsoft

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mondoo.com/cnharvest/harvest"
)

func sampleMachine() harvest.RawRecord {
	return harvest.RawRecord{
		"id":                    "8f7ea8d6c9a1",
		"computerDnsName":       "host-001.corp.example.com",
		"firstSeen":             "2023-01-07T09:14:00Z",
		"lastSeen":              "2024-05-04T17:33:21.91Z",
		"osPlatform":            "Windows11",
		"lastIpAddress":         "10.120.26.55",
		"lastExternalIpAddress": "81.2.69.142",
		"healthStatus":          "Active",
		"riskScore":             "Medium",
		"machineTags":           []interface{}{"hq", "finance"},
	}
}

func sampleVulnerability() harvest.RawRecord {
	return harvest.RawRecord{
		"id":              "CVE-2024-21302",
		"name":            "CVE-2024-21302",
		"description":     "Windows kernel elevation of privilege",
		"severity":        "High",
		"cvssV3":          float64(7.8),
		"publishedOn":     "2024-08-07T18:00:00Z",
		"updatedOn":       "2024-09-12T07:30:00Z",
		"exposedMachines": float64(17),
	}
}

func TestMachineSchemaAcceptsAPIRecord(t *testing.T) {
	require.NoError(t, MachineSchema().Validate(sampleMachine()))

	rec := sampleMachine()
	delete(rec, "id")
	err := MachineSchema().Validate(rec)
	require.Error(t, err)

	var fieldErr *harvest.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "id", fieldErr.Field)
}

func TestDecodeMachine(t *testing.T) {
	m, err := DecodeMachine(sampleMachine())
	require.NoError(t, err)

	assert.Equal(t, "8f7ea8d6c9a1", m.ID)
	assert.Equal(t, "host-001.corp.example.com", m.ComputerDNSName)
	assert.Equal(t, "10.120.26.55", m.LastIPAddress)
	assert.Equal(t, "81.2.69.142", m.LastExternalIPAddress)
	assert.Equal(t, "Medium", m.RiskScore)
	assert.Equal(t, []string{"hq", "finance"}, m.MachineTags)
}

func TestVulnerabilitySchemaAcceptsAPIRecord(t *testing.T) {
	require.NoError(t, VulnerabilitySchema().Validate(sampleVulnerability()))

	rec := sampleVulnerability()
	rec["cvssV3"] = "not-a-score"
	err := VulnerabilitySchema().Validate(rec)
	require.Error(t, err)

	var fieldErr *harvest.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "cvssV3", fieldErr.Field)
}

func TestDecodeVulnerability(t *testing.T) {
	v, err := DecodeVulnerability(sampleVulnerability())
	require.NoError(t, err)

	assert.Equal(t, "CVE-2024-21302", v.ID)
	assert.Equal(t, "High", v.Severity)
	assert.Equal(t, 7.8, v.CVSSv3)
	assert.Equal(t, 17, v.ExposedMachines)
}

func TestVulnerabilitiesEndpointFilter(t *testing.T) {
	ep := VulnerabilitiesEndpoint(DefaultVulnerabilityFloor)
	require.NotNil(t, ep.MinTime)
	assert.Equal(t, "publishedOn", ep.MinTime.Field)
	assert.True(t, ep.MinTime.After.Equal(time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC)))

	unfiltered := VulnerabilitiesEndpoint(time.Time{})
	assert.Nil(t, unfiltered.MinTime)
}

func TestMachineVulnerabilitiesPath(t *testing.T) {
	assert.Equal(t, "/api/machines/8f7ea8d6c9a1/vulnerabilities", MachineVulnerabilitiesPath("8f7ea8d6c9a1"))
	assert.Equal(t, "/api/machines/m%201/vulnerabilities", MachineVulnerabilitiesPath("m 1"))
}
