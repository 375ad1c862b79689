// Package about describes the tap for the --about flag.
package about

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/naka-gawa/tap-mssql/internal/config"
	"github.com/naka-gawa/tap-mssql/internal/singer"
)

const (
	Name        = "tap-mssql"
	Description = "Singer tap for Microsoft SQL Server"
)

// Output formats accepted by Write.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Capabilities advertised to orchestrators.
var Capabilities = []string{"catalog", "state", "discover", "about", "batch", "test"}

// Info is the --about document.
type Info struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities"`
	Settings     map[string]any `json:"settings"`
}

func New(version string) *Info {
	return &Info{
		Name:         Name,
		Description:  Description,
		Version:      version,
		Capabilities: Capabilities,
		Settings:     config.SettingsSchema(),
	}
}

// Write renders info in the given format.
func Write(w io.Writer, info *Info, format string) error {
	switch format {
	case "", FormatJSON:
		return singer.WriteDocument(w, info)
	case FormatMarkdown:
		_, err := io.WriteString(w, info.Markdown())
		return err
	}
	return fmt.Errorf("unsupported about format %q", format)
}

// Markdown renders the capabilities and a flattened settings table.
func (i *Info) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# `%s`\n\n%s\n\nBuilt with version `%s`\n\n", i.Name, i.Description, i.Version)

	sb.WriteString("## Capabilities\n\n")
	for _, c := range i.Capabilities {
		fmt.Fprintf(&sb, "* `%s`\n", c)
	}

	sb.WriteString("\n## Settings\n\n")
	sb.WriteString("| Setting | Required | Default | Description |\n")
	sb.WriteString("|:--------|:--------:|:-------:|:------------|\n")
	writeSettings(&sb, "", i.Settings)
	return sb.String()
}

func writeSettings(sb *strings.Builder, prefix string, schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	required, _ := schema["required"].([]string)

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		def := "None"
		if v, ok := p["default"]; ok {
			def = fmt.Sprint(v)
		}
		desc, _ := p["description"].(string)
		fmt.Fprintf(sb, "| %s%s | %s | %s | %s |\n", prefix, name, yesNo(slices.Contains(required, name)), def, desc)
		if _, nested := p["properties"]; nested {
			writeSettings(sb, prefix+name+".", p)
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
