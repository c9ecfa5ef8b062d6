// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package maven

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// Project is the parsed view of a pom.xml.
type Project struct {
	XMLName      xml.Name      `xml:"project"`
	GroupID      string        `xml:"groupId"`
	ArtifactID   string        `xml:"artifactId"`
	Version      string        `xml:"version"`
	Packaging    string        `xml:"packaging"`
	Name         string        `xml:"name"`
	Dependencies []pomDep      `xml:"dependencies>dependency"`
	Parent       *pomParent    `xml:"parent"`
	Properties   propertiesMap `xml:"properties"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomDep struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Type       string `xml:"type"`
}

// propertiesMap flattens the free-form <properties> block.
type propertiesMap map[string]string

func (p *propertiesMap) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	out := map[string]string{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			out[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			if t.Name == start.Name {
				*p = out
				return nil
			}
		}
	}
}

// ParsePOM reads and parses the pom.xml in projectDir.
func ParsePOM(projectDir string) (*Project, error) {
	path := filepath.Join(projectDir, "pom.xml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pom.xml: %w", err)
	}

	var proj Project
	if err := xml.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("parse pom.xml: %w", err)
	}

	// Inherit coordinates from the parent when omitted.
	if proj.Parent != nil {
		if proj.GroupID == "" {
			proj.GroupID = proj.Parent.GroupID
		}
		if proj.Version == "" {
			proj.Version = proj.Parent.Version
		}
	}
	return &proj, nil
}

// StateDependencies converts POM dependencies to state records.
func (p *Project) StateDependencies() []state.MavenDependency {
	out := make([]state.MavenDependency, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		out = append(out, state.MavenDependency{
			GroupID:    d.GroupID,
			ArtifactID: d.ArtifactID,
			Version:    d.Version,
			Scope:      d.Scope,
			Type:       d.Type,
			IsTest:     d.Scope == "test",
		})
	}
	return out
}

// HasJUnit reports whether the project declares a JUnit dependency.
func (p *Project) HasJUnit() bool {
	return p.hasArtifactPrefix("junit") || p.hasGroupPrefix("org.junit")
}

// HasMockito reports whether the project declares a Mockito dependency.
func (p *Project) HasMockito() bool {
	return p.hasGroupPrefix("org.mockito")
}

// HasSpring reports whether the project declares any Spring dependency.
func (p *Project) HasSpring() bool {
	return p.hasGroupPrefix("org.springframework") ||
		(p.Parent != nil && strings.HasPrefix(p.Parent.GroupID, "org.springframework"))
}

func (p *Project) hasGroupPrefix(prefix string) bool {
	for _, d := range p.Dependencies {
		if strings.HasPrefix(d.GroupID, prefix) {
			return true
		}
	}
	return false
}

func (p *Project) hasArtifactPrefix(prefix string) bool {
	for _, d := range p.Dependencies {
		if strings.HasPrefix(d.ArtifactID, prefix) {
			return true
		}
	}
	return false
}
