package classifier

import (
	"fmt"
	"strings"
)

// Category is one of the data kinds extracted from a conversation. Its value
// doubles as the report file stem and the download subfolder name.
type Category string

const (
	Messages Category = "messages"
	Pictures Category = "pictures"
	Gifs     Category = "gifs"
	Videos   Category = "videos"
	Files    Category = "files"
	Links    Category = "links"
)

// AllCategories lists every category in processing order
var AllCategories = []Category{Messages, Pictures, Gifs, Videos, Files, Links}

// Downloadable reports whether the category produces files in download mode
func (c Category) Downloadable() bool {
	switch c {
	case Pictures, Gifs, Videos, Files:
		return true
	}
	return false
}

// ParseCategories converts names to categories in processing order. "all"
// selects every category; an empty list does too.
func ParseCategories(names []string) ([]Category, error) {
	if len(names) == 0 {
		return AllCategories, nil
	}

	wanted := make(map[Category]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			return AllCategories, nil
		}
		c := Category(name)
		if !c.valid() {
			return nil, fmt.Errorf("unknown data category %q (want one of all, %s)", name, joinCategories(AllCategories))
		}
		wanted[c] = true
	}

	var out []Category
	for _, c := range AllCategories {
		if wanted[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (c Category) valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

func joinCategories(cs []Category) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// Mode selects whether attachments are only reported or also downloaded
type Mode string

const (
	ModeReport   Mode = "report"
	ModeDownload Mode = "dl"
)

// ParseMode validates a mode name
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(name)); m {
	case ModeReport, ModeDownload:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want report or dl)", name)
}

// Counts holds the number of records produced per category
type Counts map[Category]int

// Total returns the sum over every category
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Add accumulates other into c
func (c Counts) Add(other Counts) {
	for k, v := range other {
		c[k] += v
	}
}
