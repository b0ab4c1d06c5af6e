package utils

import (
	"strings"
	"testing"
)

const driveId = "1A2b3C4d5E6f7G8h9I0jK1L2m3N4o5P6"

var embedTests = []struct {
	name     string
	postType string
	id       string
	expected string
}{
	{"docs", "docs", driveId, "https://docs.google.com/document/d/" + driveId + "/preview"},
	{"docs uppercase type", "DOCS", driveId, "https://docs.google.com/document/d/" + driveId + "/preview"},
	{"slide", "slide", driveId, "https://docs.google.com/presentation/d/" + driveId + "/embed?start=false&loop=false&delayms=3000"},
	{"img", "img", driveId, "https://drive.google.com/file/d/" + driveId + "/preview"},
	{"pdf", "pdf", driveId, "https://drive.google.com/file/d/" + driveId + "/preview"},
	{"spreadsheet", "spreadsheet", driveId, "https://docs.google.com/spreadsheets/d/" + driveId + "/htmlembed"},
	{"folder", "folder", driveId, "https://drive.google.com/embeddedfolderview?id=" + driveId + "#grid"},
	{"local html", "html", "page.html", "contents/html/page.html"},
	{"traversal rejected", "html", "../x.html", ""},
	{"separator rejected", "html", "sub/page.html", ""},
	{"wrong extension", "html", "page.txt", ""},
	{"drive id too short", "docs", "abc123", ""},
	{"drive id too long", "docs", strings.Repeat("a", 45), ""},
	{"drive id bad characters", "docs", strings.Repeat("a", 30) + "!?", ""},
	{"unknown type", "video", driveId, ""},
	{"empty id", "docs", "", ""},
}

func TestEmbedURL(t *testing.T) {
	for _, tt := range embedTests {
		t.Run(tt.name, func(t *testing.T) {
			result := EmbedURL(tt.postType, tt.id)
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}
