package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"actionboard/internal/calendar"
	"actionboard/internal/domain"
)

// Config models actionboard.yml.
type Config struct {
	Calendar struct {
		WeekStart string `yaml:"week_start"`
		Timezone  string `yaml:"timezone"`
	} `yaml:"calendar"`
	// Seed is the reference data written on first use; see Reference.
	Seed struct {
		Areas      []Lookup `yaml:"areas"`
		Categories []Lookup `yaml:"categories"`
		States     []Lookup `yaml:"states"`
		Priorities []Lookup `yaml:"priorities"`
	} `yaml:"reference"`
	ContentCategories []string        `yaml:"content_categories"`
	Sections          map[string]int  `yaml:"sections"`
	Webhooks          []WebhookConfig `yaml:"webhooks"`
}

// Lookup is one row of a reference table seed.
type Lookup struct {
	Slug     string `yaml:"slug"`
	Title    string `yaml:"title"`
	Area     string `yaml:"area,omitempty"`
	Color    string `yaml:"color,omitempty"`
	Shortcut string `yaml:"shortcut,omitempty"`
}

type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Events  []string `yaml:"events,omitempty"`
	Enabled *bool    `yaml:"enabled,omitempty"`
	Secret  string   `yaml:"secret,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ab init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := calendar.ParseWeekday(c.Calendar.WeekStart); err != nil {
		return fmt.Errorf("config.calendar.week_start: %w", err)
	}
	if c.Calendar.Timezone != "" {
		if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
			return fmt.Errorf("config.calendar.timezone: %w", err)
		}
	}
	for name, rows := range map[string][]Lookup{
		"areas":      c.Seed.Areas,
		"categories": c.Seed.Categories,
		"states":     c.Seed.States,
		"priorities": c.Seed.Priorities,
	} {
		if len(rows) == 0 {
			return fmt.Errorf("config.reference.%s is required", name)
		}
		seen := map[string]bool{}
		for _, row := range rows {
			if row.Slug == "" {
				return fmt.Errorf("config.reference.%s has empty slug", name)
			}
			if seen[row.Slug] {
				return fmt.Errorf("config.reference.%s has duplicate slug %s", name, row.Slug)
			}
			seen[row.Slug] = true
		}
	}
	if !slices.ContainsFunc(c.Seed.States, func(l Lookup) bool { return l.Slug == domain.StateFinished }) {
		return fmt.Errorf("config.reference.states must include %s", domain.StateFinished)
	}
	if !slices.ContainsFunc(c.Seed.Priorities, func(l Lookup) bool { return l.Slug == domain.PriorityHigh }) {
		return fmt.Errorf("config.reference.priorities must include %s", domain.PriorityHigh)
	}
	areas := map[string]bool{}
	for _, a := range c.Seed.Areas {
		areas[a.Slug] = true
	}
	categories := map[string]bool{}
	for _, cat := range c.Seed.Categories {
		if !areas[cat.Area] {
			return fmt.Errorf("category %s references unknown area %q", cat.Slug, cat.Area)
		}
		categories[cat.Slug] = true
	}
	for _, slug := range c.ContentCategories {
		if !categories[slug] {
			return fmt.Errorf("content category %s is not a known category", slug)
		}
	}
	for section, role := range c.Sections {
		if section == "" {
			return fmt.Errorf("config.sections contains empty section name")
		}
		if role < 0 {
			return fmt.Errorf("section %s has negative minimum role", section)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Location returns the configured timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c == nil || c.Calendar.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) WeekStart() time.Weekday {
	if c == nil {
		return time.Sunday
	}
	d, _ := calendar.ParseWeekday(c.Calendar.WeekStart)
	return d
}

// MinRole returns the minimum person role for a dashboard section; unknown sections are open.
func (c *Config) MinRole(section string) int {
	if c == nil {
		return 0
	}
	return c.Sections[section]
}

// Reference converts the lookup seeds into domain reference rows. Ids equal slugs.
func (c *Config) Reference() domain.Reference {
	var ref domain.Reference
	for i, l := range c.Seed.Areas {
		ref.Areas = append(ref.Areas, domain.Area{ID: l.Slug, Title: l.Title, Slug: l.Slug, SortOrder: i, Shortcut: l.Shortcut})
	}
	for i, l := range c.Seed.Categories {
		ref.Categories = append(ref.Categories, domain.Category{ID: l.Slug, Title: l.Title, Slug: l.Slug, Area: l.Area, SortOrder: i, Shortcut: l.Shortcut})
	}
	for i, l := range c.Seed.States {
		ref.States = append(ref.States, domain.State{ID: l.Slug, Title: l.Title, Slug: l.Slug, Color: l.Color, SortOrder: i, Shortcut: l.Shortcut})
	}
	for i, l := range c.Seed.Priorities {
		ref.Priorities = append(ref.Priorities, domain.Priority{ID: l.Slug, Title: l.Title, Slug: l.Slug, Color: l.Color, SortOrder: i, Shortcut: l.Shortcut})
	}
	return ref
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "actionboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `calendar:
  week_start: sunday
  timezone: UTC

reference:
  areas:
    - {slug: creative, title: Creative}
    - {slug: content, title: Content}
    - {slug: account, title: Account}

  categories:
    - {slug: post, title: Post, area: content, shortcut: p}
    - {slug: reels, title: Reels, area: content, shortcut: r}
    - {slug: carousel, title: Carousel, area: content, shortcut: c}
    - {slug: stories, title: Stories, area: content, shortcut: s}
    - {slug: design, title: Design, area: creative, shortcut: d}
    - {slug: video, title: Video, area: creative, shortcut: v}
    - {slug: meeting, title: Meeting, area: account, shortcut: m}
    - {slug: task, title: Task, area: account, shortcut: t}
    - {slug: finance, title: Finance, area: account, shortcut: f}

  states:
    - {slug: idea, title: Idea, color: "#a855f7", shortcut: i}
    - {slug: do, title: To do, color: "#64748b", shortcut: f}
    - {slug: doing, title: Doing, color: "#3b82f6", shortcut: z}
    - {slug: review, title: Review, color: "#f59e0b", shortcut: r}
    - {slug: done, title: Done, color: "#22c55e", shortcut: d}
    - {slug: finished, title: Finished, color: "#0f172a", shortcut: c}

  priorities:
    - {slug: low, title: Low, color: "#94a3b8"}
    - {slug: medium, title: Medium, color: "#3b82f6"}
    - {slug: high, title: High, color: "#ef4444"}

content_categories: [post, reels, carousel, stories]

sections:
  dashboard: 0
  month: 0
  week: 0
  day: 0
  kanban: 0
  feed: 1
`
