package documents

import (
	"path/filepath"
	"strings"
)

// ValidationResult is the outcome of validating an upload request.
type ValidationResult struct {
	Valid              bool     `json:"valid"`
	Errors             []string `json:"errors,omitempty"`
	EstimatedProcessMs int64    `json:"estimated_process_ms"`
	DetectedFileType   string   `json:"detected_file_type"`
	TooLarge           bool     `json:"too_large,omitempty"`
}

// executableSuffixes are rejected outright regardless of the advertised
// content type: uploading one is never a legitimate document ingestion.
var executableSuffixes = []string{".exe", ".sh", ".bat", ".cmd", ".com", ".msi", ".dll", ".so", ".bin"}

// ValidateUpload is DocumentPipeline.validate: stateless, rejects oversized
// uploads, unsupported formats, suspicious file names, and advertised/
// detected type mismatches.
func ValidateUpload(fileName string, size int64, advertisedType string, content []byte, maxFileSize int64, supportedFormats []string) ValidationResult {
	var errs []string
	var tooLarge bool

	if size > maxFileSize {
		errs = append(errs, "file size exceeds maximum allowed")
		tooLarge = true
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !formatSupported(ext, supportedFormats) {
		errs = append(errs, "unsupported file format: "+ext)
	}

	if hasDoubleExtension(fileName) {
		errs = append(errs, "suspicious file name: double extension")
	}
	for _, suffix := range executableSuffixes {
		if strings.HasSuffix(strings.ToLower(fileName), suffix) {
			errs = append(errs, "suspicious file name: executable suffix")
			break
		}
	}

	detected := detectContentType(content)
	if advertisedType != "" && !contentTypeCompatible(advertisedType, detected) {
		errs = append(errs, "advertised type does not match detected content")
	}

	return ValidationResult{
		Valid:              len(errs) == 0,
		Errors:             errs,
		EstimatedProcessMs: estimateProcessingMs(size),
		DetectedFileType:   detected,
		TooLarge:           tooLarge,
	}
}

func formatSupported(ext string, supported []string) bool {
	for _, s := range supported {
		if strings.EqualFold(s, ext) {
			return true
		}
	}
	return false
}

// hasDoubleExtension flags names like "report.pdf.exe" — two or more
// extension-looking suffixes stacked on the base name.
func hasDoubleExtension(fileName string) bool {
	base := filepath.Base(fileName)
	parts := strings.Split(base, ".")
	return len(parts) > 2
}

func detectContentType(content []byte) string {
	sample := content
	if len(sample) > 512 {
		sample = sample[:512]
	}
	for _, b := range sample {
		if b == 0 {
			return "binary"
		}
	}
	return "text"
}

func contentTypeCompatible(advertised, detected string) bool {
	if detected == "binary" {
		return false
	}
	return true
}

// estimateProcessingMs gives a coarse linear estimate used only to inform
// the caller; it is not a correctness guarantee.
func estimateProcessingMs(size int64) int64 {
	const bytesPerMs = 50_000
	estimate := size / bytesPerMs
	if estimate < 10 {
		estimate = 10
	}
	return estimate
}
