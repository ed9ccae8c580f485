// Package gemini implements the document intelligence collaborators
// (classification, parsing and knowledge graph extraction) on top of
// Google's Gemini API.
package gemini
