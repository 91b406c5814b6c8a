package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractDocx reconstructs markdown from the Word document XML: heading
// level from the paragraph style, a bullet for list paragraphs, and
// bold/italic/underline inline markup from run properties.
func extractDocx(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("parse docx %s: %w", path, err)
	}
	defer doc.Close()

	return docxXMLToMarkdown(doc.Editable().GetContent()), nil
}

func docxXMLToMarkdown(content string) string {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false

	var paragraphs []string
	var para strings.Builder
	var run strings.Builder
	var style string
	var bold, italic, underline bool
	inRunProps, inText := false, false

	flushRun := func() {
		text := run.String()
		run.Reset()
		if strings.TrimSpace(text) != "" {
			if bold {
				text = "**" + text + "**"
			}
			if italic {
				text = "*" + text + "*"
			}
			if underline {
				text = "_" + text + "_"
			}
		}
		para.WriteString(text)
	}

	flushParagraph := func() {
		text := para.String()
		para.Reset()
		switch {
		case strings.HasPrefix(style, "Heading"):
			level, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(style, "Heading")))
			if err != nil || level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			text = strings.Repeat("#", level) + " " + text
		case style == "ListParagraph":
			text = "- " + text
		}
		paragraphs = append(paragraphs, text)
		style = ""
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para.Reset()
				style = ""
			case "pStyle":
				style = attrVal(t, "val")
			case "r":
				run.Reset()
				bold, italic, underline = false, false, false
			case "rPr":
				inRunProps = true
			case "b":
				if inRunProps {
					bold = attrVal(t, "val") != "false" && attrVal(t, "val") != "0"
				}
			case "i":
				if inRunProps {
					italic = attrVal(t, "val") != "false" && attrVal(t, "val") != "0"
				}
			case "u":
				if inRunProps {
					underline = attrVal(t, "val") != "none"
				}
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flushParagraph()
			case "r":
				flushRun()
			case "rPr":
				inRunProps = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				run.Write(t)
			}
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

func attrVal(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
