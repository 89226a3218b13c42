// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConversionStatus is the outcome of one markdown-to-DOCX conversion.
type ConversionStatus string

const (
	ConversionDone   ConversionStatus = "converted"
	ConversionFailed ConversionStatus = "failed"
)

// Format tags passed to the conversion engine.
const (
	FormatMarkdown = "markdown"
	FormatDOCX     = "docx"
)
