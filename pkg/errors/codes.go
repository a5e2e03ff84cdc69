package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal      ErrorCode = "COMMON_001"
	ErrCodeBadRequest    ErrorCode = "COMMON_002"
	ErrCodeNotFound      ErrorCode = "COMMON_005"
	ErrCodeCanceled      ErrorCode = "COMMON_009"
	ErrCodeValidation    ErrorCode = "COMMON_010"
	ErrCodeSerialization ErrorCode = "COMMON_011"
	ErrCodeDatabaseError ErrorCode = "COMMON_012"
	ErrCodeConfigInvalid ErrorCode = "COMMON_017"
)

// Aliases used at call sites.
const (
	CodeInternal      = ErrCodeInternal
	CodeInvalidParam  = ErrCodeBadRequest
	CodeValidation    = ErrCodeValidation
	CodeNotFound      = ErrCodeNotFound
	CodeCanceled      = ErrCodeCanceled
	CodeSerialization = ErrCodeSerialization
	CodeDatabaseError = ErrCodeDatabaseError
	CodeConfigInvalid = ErrCodeConfigInvalid
	CodeUnknown       = ErrorCode("UNKNOWN")
	CodeOK            = ErrorCode("OK")

	CodeInvalidLattice    = ErrCodeInvalidLattice
	CodeInvalidSpecies    = ErrCodeInvalidSpecies
	CodeInvalidFormula    = ErrCodeInvalidFormula
	CodeNoDefectSite      = ErrCodeNoDefectSite
	CodeStructureMismatch = ErrCodeStructureMismatch

	CodeNoElementEnergy     = ErrCodeNoElementEnergy
	CodeTargetNotFound      = ErrCodeTargetNotFound
	CodeGeometryInfeasible  = ErrCodeGeometryInfeasible
	CodeEmptyDiagram        = ErrCodeEmptyDiagram
	CodeCompositionNotFound = ErrCodeCompositionNotFound

	CodeStoreUnavailable = ErrCodeStoreUnavailable
	CodeStoreCorrupt     = ErrCodeStoreCorrupt
)

// Structure Module Error Codes
const (
	ErrCodeInvalidLattice    ErrorCode = "STR_001"
	ErrCodeInvalidSpecies    ErrorCode = "STR_002"
	ErrCodeInvalidFormula    ErrorCode = "STR_003"
	ErrCodeNoDefectSite      ErrorCode = "STR_004"
	ErrCodeStructureMismatch ErrorCode = "STR_005"
)

// Chemical Potential Diagram Error Codes
const (
	ErrCodeNoElementEnergy     ErrorCode = "CPD_001"
	ErrCodeTargetNotFound      ErrorCode = "CPD_002"
	ErrCodeGeometryInfeasible  ErrorCode = "CPD_003"
	ErrCodeEmptyDiagram        ErrorCode = "CPD_004"
	ErrCodeCompositionNotFound ErrorCode = "CPD_005"
)

// Storage Error Codes
const (
	ErrCodeStoreUnavailable ErrorCode = "STO_001"
	ErrCodeStoreCorrupt     ErrorCode = "STO_002"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:      "internal error",
	ErrCodeBadRequest:    "invalid parameter",
	ErrCodeNotFound:      "resource not found",
	ErrCodeCanceled:      "operation canceled",
	ErrCodeValidation:    "validation failed",
	ErrCodeSerialization: "serialization failed",
	ErrCodeDatabaseError: "database error",
	ErrCodeConfigInvalid: "invalid configuration",

	ErrCodeInvalidLattice:    "invalid lattice",
	ErrCodeInvalidSpecies:    "invalid species symbol",
	ErrCodeInvalidFormula:    "invalid chemical formula",
	ErrCodeNoDefectSite:      "structures do not differ",
	ErrCodeStructureMismatch: "structures are not comparable",

	ErrCodeNoElementEnergy:     "elemental reference energy missing",
	ErrCodeTargetNotFound:      "target compound not in relative energies",
	ErrCodeGeometryInfeasible:  "half-space system has no interior",
	ErrCodeEmptyDiagram:        "chemical potential diagram has no vertices",
	ErrCodeCompositionNotFound: "composition not found",

	ErrCodeStoreUnavailable: "composition store unavailable",
	ErrCodeStoreCorrupt:     "composition store holds malformed data",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsConfigurationError reports whether code denotes a fatal input/configuration
// problem raised at construction time, as opposed to an internal failure.
func IsConfigurationError(code ErrorCode) bool {
	switch code {
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeConfigInvalid,
		ErrCodeInvalidLattice, ErrCodeInvalidSpecies, ErrCodeInvalidFormula,
		ErrCodeNoElementEnergy, ErrCodeTargetNotFound:
		return true
	}
	return false
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
