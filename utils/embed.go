package utils

import (
	"fmt"
	log "github.com/sirupsen/logrus"
	"strings"
)

// Google Drive file ids are 28-44 characters of [A-Za-z0-9_-].
func isValidDriveId(id string) bool {
	if len(id) < 28 || len(id) > 44 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// Local html pages live under contents/html/. The name must be a bare
// *.html filename with no path separators or traversal sequences.
func isValidLocalHtmlName(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	if !strings.HasSuffix(strings.ToLower(name), ".html") {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// EmbedURL builds the viewer URL for a post given its type and id.
// Unknown types and invalid ids yield an empty string.
func EmbedURL(postType string, id string) string {
	if id == "" {
		log.Warningf("EmbedURL: empty id for type %q", postType)
		return ""
	}

	switch strings.ToLower(postType) {
	case "docs", "slide", "img", "pdf", "spreadsheet", "folder":
		if !isValidDriveId(id) {
			log.Warningf("EmbedURL: invalid Drive id %q for type %q", id, postType)
			return ""
		}
	case "html":
		if !isValidLocalHtmlName(id) {
			log.Warningf("EmbedURL: invalid local html file name %q", id)
			return ""
		}
	}

	switch strings.ToLower(postType) {
	case "docs":
		return fmt.Sprintf("https://docs.google.com/document/d/%s/preview", id)
	case "slide":
		return fmt.Sprintf("https://docs.google.com/presentation/d/%s/embed?start=false&loop=false&delayms=3000", id)
	case "img", "pdf":
		return fmt.Sprintf("https://drive.google.com/file/d/%s/preview", id)
	case "spreadsheet":
		return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/htmlembed", id)
	case "folder":
		return fmt.Sprintf("https://drive.google.com/embeddedfolderview?id=%s#grid", id)
	case "html":
		return "contents/html/" + id
	default:
		log.Warningf("EmbedURL: unsupported embed type %q", postType)
		return ""
	}
}
