package handlers

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/policy"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

//go:embed messages.yaml
var messagesYAML []byte

// Capability names used by help sections.
const (
	requiresAnalytics     = "analytics"
	requiresConfigure     = "configure"
	requiresNotifications = "notifications"
)

type helpSection struct {
	Heading  string   `yaml:"heading"`
	Requires string   `yaml:"requires"`
	Lines    []string `yaml:"lines"`
}

type catalog struct {
	Help struct {
		Title         string        `yaml:"title"`
		NotUnderstood string        `yaml:"not_understood"`
		Intro         string        `yaml:"intro"`
		Sections      []helpSection `yaml:"sections"`
		Footer        string        `yaml:"footer"`
	} `yaml:"help"`
	Cancel struct {
		Nothing  string                       `yaml:"nothing"`
		Default  string                       `yaml:"default"`
		Messages map[string]map[string]string `yaml:"messages"`
	} `yaml:"cancel"`
}

var messages = mustLoadCatalog(messagesYAML)

func loadCatalog(b []byte) (*catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse message catalogue: %w", err)
	}
	if c.Cancel.Default == "" || c.Cancel.Nothing == "" {
		return nil, fmt.Errorf("message catalogue: cancel.default and cancel.nothing are required")
	}
	return &c, nil
}

func mustLoadCatalog(b []byte) *catalog {
	c, err := loadCatalog(b)
	if err != nil {
		panic(err)
	}
	return c
}

// cancelMessage looks up the cancellation copy for (typ, entity).
func (c *catalog) cancelMessage(typ session.ActionType, entity session.EntityType) string {
	if byEntity, ok := c.Cancel.Messages[string(typ)]; ok {
		if msg, ok := byEntity[string(entity)]; ok && msg != "" {
			return msg
		}
	}
	return c.Cancel.Default
}

func (s helpSection) allowed(caps policy.Capabilities) bool {
	switch s.Requires {
	case requiresAnalytics:
		return caps.CanViewAnalytics
	case requiresConfigure:
		return caps.CanConfigure
	case requiresNotifications:
		return caps.CanReceiveNotifications
	}
	return true
}
