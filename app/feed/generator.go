package feed

import (
	"bytes"
	"encoding/xml"
	"html"
	"strings"
	"time"
)

const generatorName = "Config Rotator"

// Generator serialises documents as Atom 1.0. Output depends only on the
// document, so an entry renders to the same bytes on every rewrite.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(doc *Document) []byte {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n")

	g.writeElement(&buf, "id", doc.ID, 2)
	g.writeElement(&buf, "title", doc.Title, 2)
	if doc.Link != "" {
		buf.WriteString(`  <link href="`)
		buf.WriteString(html.EscapeString(doc.Link))
		buf.WriteString(`" rel="self" type="application/atom+xml" />`)
		buf.WriteString("\n")
	}
	g.writeElement(&buf, "updated", formatTime(doc.Updated), 2)
	buf.WriteString("  <author>\n")
	g.writeElement(&buf, "name", generatorName, 4)
	buf.WriteString("  </author>\n")
	g.writeElement(&buf, "generator", generatorName, 2)

	for _, entry := range doc.Entries {
		g.writeEntry(&buf, entry)
	}

	buf.WriteString("</feed>\n")

	return buf.Bytes()
}

func (g *Generator) writeEntry(buf *bytes.Buffer, entry Entry) {
	buf.WriteString("  <entry>\n")

	g.writeElement(buf, "id", entry.ID, 4)
	g.writeElement(buf, "title", entry.Title, 4)
	g.writeElement(buf, "updated", formatTime(entry.Updated), 4)

	if entry.Link != "" {
		buf.WriteString(`    <link href="`)
		buf.WriteString(html.EscapeString(entry.Link))
		buf.WriteString(`" rel="alternate" />`)
		buf.WriteString("\n")
	}

	g.writeElement(buf, "summary", entry.Summary, 4)

	buf.WriteString("  </entry>\n")
}

// writeElement trims content the way the Atom parser does on read, so a
// saved document reloads to the same text and re-renders to the same bytes.
func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
