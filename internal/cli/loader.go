package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/quotewire/quotewire/internal/rfq"
)

// LoadMode controls how errors are handled during catalog loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// CatalogResult contains the instruments loaded from a catalog directory.
type CatalogResult struct {
	Instruments []rfq.Instrument
	CUEValue    cue.Value // The raw CUE value for additional processing
	FileCount   int       // Number of CUE files found
}

// LoadError represents an error that occurred during catalog loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCatalog loads an instrument catalog from a directory of CUE files.
// Catalog files declare instruments keyed by cusip under the top-level
// "instrument" struct:
//
//	instrument: "912828YK0": {
//		security_id: 42
//		min_size:    100
//		enabled:     true
//	}
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadCatalog(dir string, mode LoadMode) (*CatalogResult, []error) {
	var errs []error

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	// Find CUE files
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &CatalogResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	instrumentsVal := value.LookupPath(cue.ParsePath("instrument"))
	if !instrumentsVal.Exists() {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no instruments found in catalog"})
		return result, errs
	}

	iter, iterErr := instrumentsVal.Fields()
	if iterErr != nil {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating instruments: %v", iterErr)})
		return result, errs
	}

	seenSecurityIDs := make(map[int64]string)
	for iter.Next() {
		entry, entryErrs := decodeCatalogEntry(iter.Label(), iter.Value())
		if len(entryErrs) > 0 {
			errs = append(errs, entryErrs...)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		if prior, dup := seenSecurityIDs[entry.SecurityID]; dup {
			errs = append(errs, &LoadError{
				Code:    ErrCodeDuplicate,
				Message: fmt.Sprintf("instrument %s: security_id %d already used by %s", entry.Cusip, entry.SecurityID, prior),
				Pos:     iter.Value().Pos(),
			})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		seenSecurityIDs[entry.SecurityID] = entry.Cusip
		result.Instruments = append(result.Instruments, entry)
	}

	if len(result.Instruments) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no instruments found in catalog"})
	}

	return result, errs
}

// decodeCatalogEntry extracts one instrument from its CUE struct value.
func decodeCatalogEntry(cusip string, v cue.Value) (rfq.Instrument, []error) {
	var errs []error
	entry := rfq.Instrument{Cusip: cusip}

	if cusip == "" {
		errs = append(errs, &LoadError{Code: ErrCodeInvalid, Message: "instrument with empty cusip", Pos: v.Pos()})
	}

	secVal := v.LookupPath(cue.ParsePath("security_id"))
	if !secVal.Exists() {
		errs = append(errs, &LoadError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("instrument %s: missing security_id", cusip),
			Pos:     v.Pos(),
		})
	} else if id, err := secVal.Int64(); err != nil {
		errs = append(errs, &LoadError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("instrument %s: security_id: %v", cusip, err),
			Pos:     secVal.Pos(),
		})
	} else if id <= 0 {
		errs = append(errs, &LoadError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("instrument %s: security_id must be positive, got %d", cusip, id),
			Pos:     secVal.Pos(),
		})
	} else {
		entry.SecurityID = id
	}

	minVal := v.LookupPath(cue.ParsePath("min_size"))
	if minVal.Exists() {
		size, err := minVal.Int64()
		switch {
		case err != nil:
			errs = append(errs, &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("instrument %s: min_size: %v", cusip, err),
				Pos:     minVal.Pos(),
			})
		case size < 0:
			errs = append(errs, &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("instrument %s: min_size must not be negative, got %d", cusip, size),
				Pos:     minVal.Pos(),
			})
		default:
			entry.MinSize = size
		}
	}

	// Instruments default to enabled unless the catalog says otherwise.
	entry.Enabled = true
	enabledVal := v.LookupPath(cue.ParsePath("enabled"))
	if enabledVal.Exists() {
		enabled, err := enabledVal.Bool()
		if err != nil {
			errs = append(errs, &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("instrument %s: enabled: %v", cusip, err),
				Pos:     enabledVal.Pos(),
			})
		} else {
			entry.Enabled = enabled
		}
	}

	return entry, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeInvalid     = "E007" // Invalid instrument definition
	ErrCodeDuplicate   = "E008" // Duplicate security id
)
