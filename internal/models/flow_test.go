package models

import (
	"reflect"
	"testing"
)

func TestRawTextNotStoredInFirestore(t *testing.T) {
	field, ok := reflect.TypeOf(PageFlow{}).FieldByName("RawText")
	if !ok {
		t.Fatal("PageFlow has no RawText field")
	}
	if got := field.Tag.Get("firestore"); got != "-" {
		t.Errorf("RawText firestore tag = %q, want \"-\"", got)
	}
	if got := field.Tag.Get("json"); got != "raw_text,omitempty" {
		t.Errorf("RawText json tag = %q", got)
	}
}

func TestPageTextRebuildsFromBlocks(t *testing.T) {
	page := PageFlow{
		Blocks: []ContentBlock{
			{BlockType: BlockHeading, Content: "Executive Summary"},
			{BlockType: BlockChart, Content: "chart caption"},
			{BlockType: BlockParagraph, Content: ""},
			{BlockType: BlockParagraph, Content: "Growth slowed."},
		},
	}
	if got, want := page.Text(), "Executive Summary\n\nGrowth slowed."; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}

	page.RawText = "loaded"
	if got := page.Text(); got != "loaded" {
		t.Errorf("Text() with RawText = %q, want %q", got, "loaded")
	}
}
