// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package microsoft holds the endpoint descriptors, schemas and typed
// rows for the Microsoft security services cnharvest reports on. The
// harvest core stays vendor neutral, everything service specific lives
// here.
package microsoft

import (
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"go.mondoo.com/cnharvest/harvest"
)

const (
	// DefaultDefenderBaseURL is the Defender for Endpoint API root
	DefaultDefenderBaseURL = "https://api.securitycenter.microsoft.com"
	// DefaultGraphBaseURL is the Microsoft Graph API root
	DefaultGraphBaseURL = "https://graph.microsoft.com"
)

// DefaultVulnerabilityFloor cuts off the ancient CVE backlog the
// vulnerability feed starts with.
var DefaultVulnerabilityFloor = time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC)

// Machine is one onboarded Defender machine.
type Machine struct {
	ID                    string   `mapstructure:"id"`
	ComputerDNSName       string   `mapstructure:"computerDnsName"`
	FirstSeen             string   `mapstructure:"firstSeen"`
	LastSeen              string   `mapstructure:"lastSeen"`
	OSPlatform            string   `mapstructure:"osPlatform"`
	LastIPAddress         string   `mapstructure:"lastIpAddress"`
	LastExternalIPAddress string   `mapstructure:"lastExternalIpAddress"`
	HealthStatus          string   `mapstructure:"healthStatus"`
	RiskScore             string   `mapstructure:"riskScore"`
	MachineTags           []string `mapstructure:"machineTags"`
}

// Vulnerability is one entry of the Defender vulnerability catalog.
type Vulnerability struct {
	ID              string  `mapstructure:"id"`
	Name            string  `mapstructure:"name"`
	Description     string  `mapstructure:"description"`
	Severity        string  `mapstructure:"severity"`
	CVSSv3          float64 `mapstructure:"cvssV3"`
	PublishedOn     string  `mapstructure:"publishedOn"`
	UpdatedOn       string  `mapstructure:"updatedOn"`
	ExposedMachines int     `mapstructure:"exposedMachines"`
}

// MachinesEndpoint lists all onboarded machines.
func MachinesEndpoint() harvest.Endpoint {
	return harvest.Endpoint{
		Name:     "machines",
		Path:     "/api/machines",
		PageSize: 500,
		Schema:   MachineSchema(),
	}
}

func MachineSchema() *harvest.Schema {
	return harvest.NewSchema("machines",
		harvest.Field{Name: "id", Kind: harvest.KindString, Required: true},
		harvest.Field{Name: "computerDnsName", Kind: harvest.KindString},
		harvest.Field{Name: "firstSeen", Kind: harvest.KindTime},
		harvest.Field{Name: "lastSeen", Kind: harvest.KindTime},
		harvest.Field{Name: "osPlatform", Kind: harvest.KindString},
		harvest.Field{Name: "lastIpAddress", Kind: harvest.KindString},
		harvest.Field{Name: "lastExternalIpAddress", Kind: harvest.KindString},
		harvest.Field{Name: "healthStatus", Kind: harvest.KindString},
		harvest.Field{Name: "riskScore", Kind: harvest.KindString},
		harvest.Field{Name: "machineTags", Kind: harvest.KindStringList},
	)
}

// VulnerabilitiesEndpoint lists the vulnerability catalog. A non-zero
// publishedAfter drops everything published on or before that date.
func VulnerabilitiesEndpoint(publishedAfter time.Time) harvest.Endpoint {
	ep := harvest.Endpoint{
		Name:     "vulnerabilities",
		Path:     "/api/vulnerabilities",
		PageSize: 1000,
		Schema:   VulnerabilitySchema(),
	}
	if !publishedAfter.IsZero() {
		ep.MinTime = &harvest.TimeFilter{Field: "publishedOn", After: publishedAfter}
	}
	return ep
}

func VulnerabilitySchema() *harvest.Schema {
	return harvest.NewSchema("vulnerabilities",
		harvest.Field{Name: "id", Kind: harvest.KindString, Required: true},
		harvest.Field{Name: "name", Kind: harvest.KindString},
		harvest.Field{Name: "description", Kind: harvest.KindString},
		harvest.Field{Name: "severity", Kind: harvest.KindString},
		harvest.Field{Name: "cvssV3", Kind: harvest.KindFloat},
		harvest.Field{Name: "publishedOn", Kind: harvest.KindTime},
		harvest.Field{Name: "updatedOn", Kind: harvest.KindTime},
		harvest.Field{Name: "exposedMachines", Kind: harvest.KindInt},
	)
}

// MachineVulnerabilitiesPath is the detail path listing the
// vulnerabilities of one machine.
func MachineVulnerabilitiesPath(machineID string) string {
	return "/api/machines/" + url.PathEscape(machineID) + "/vulnerabilities"
}

// DecodeMachine turns a validated record into its typed row.
func DecodeMachine(rec harvest.RawRecord) (*Machine, error) {
	var m Machine
	if err := mapstructure.WeakDecode(map[string]interface{}(rec), &m); err != nil {
		return nil, errors.Wrap(err, "cannot decode machine record")
	}
	return &m, nil
}

// DecodeVulnerability turns a validated record into its typed row.
func DecodeVulnerability(rec harvest.RawRecord) (*Vulnerability, error) {
	var v Vulnerability
	if err := mapstructure.WeakDecode(map[string]interface{}(rec), &v); err != nil {
		return nil, errors.Wrap(err, "cannot decode vulnerability record")
	}
	return &v, nil
}
