package constants

// DocumentStatus is the per-document outcome of the extraction stage.
type DocumentStatus string

// Stable values, written as-is into exported reports.
const (
	DocumentStatusProcessed     DocumentStatus = "processed"     // at least one tier produced text
	DocumentStatusUnprocessable DocumentStatus = "unprocessable" // all tiers exhausted
)

// ExtractionMethod records which tier produced a text fragment.
type ExtractionMethod string

const (
	MethodNative ExtractionMethod = "native"
	MethodRaster ExtractionMethod = "raster"
	MethodVision ExtractionMethod = "vision"
	MethodDocx   ExtractionMethod = "docx"
)
