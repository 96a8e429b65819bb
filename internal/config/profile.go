package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a YAML file of recognition parameters. Zero values leave the
// environment settings untouched.
//
//	domain: iat
//	language: en_us
//	accent: mandarin
//	vad_eos: 3000
//	vinfo: false
//	frame_size: 1280
//	frame_interval_ms: 40
type Profile struct {
	Domain          string `yaml:"domain"`
	Language        string `yaml:"language"`
	Accent          string `yaml:"accent"`
	VADEos          int    `yaml:"vad_eos"`
	VInfo           *bool  `yaml:"vinfo"`
	FrameSize       int    `yaml:"frame_size"`
	FrameIntervalMs *int   `yaml:"frame_interval_ms"`
}

// ApplyProfile reads the YAML profile at path and overlays it on c
func (c *Config) ApplyProfile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode profile %s: %w", path, err)
	}
	c.applyProfile(p)
	return nil
}

func (c *Config) applyProfile(p Profile) {
	if p.Domain != "" {
		c.Domain = p.Domain
	}
	if p.Language != "" {
		c.Language = p.Language
	}
	if p.Accent != "" {
		c.Accent = p.Accent
	}
	if p.VADEos > 0 {
		c.VADEos = p.VADEos
	}
	if p.VInfo != nil {
		c.VInfo = *p.VInfo
	}
	if p.FrameSize > 0 {
		c.FrameSize = p.FrameSize
	}
	if p.FrameIntervalMs != nil {
		c.FrameIntervalMs = *p.FrameIntervalMs
	}
}
