package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Catalog errors
	CodeFactionNameEmpty       Code = "FACTION_NAME_EMPTY"
	CodeFactionNameTaken       Code = "FACTION_NAME_TAKEN"
	CodeDatasheetNameEmpty     Code = "DATASHEET_NAME_EMPTY"
	CodeDatasheetNameTaken     Code = "DATASHEET_NAME_TAKEN"
	CodeDatasheetInvalidStats  Code = "DATASHEET_INVALID_STATS"
	CodeDatasheetHasDependents Code = "DATASHEET_HAS_DEPENDENTS"
	CodeDetachmentNameEmpty    Code = "DETACHMENT_NAME_EMPTY"
	CodeAbilityNameEmpty       Code = "ABILITY_NAME_EMPTY"
	CodeWeaponInvalidProfile   Code = "WEAPON_INVALID_PROFILE"
	CodeStratagemNameEmpty     Code = "STRATAGEM_NAME_EMPTY"
	CodeStratagemInvalidCost   Code = "STRATAGEM_INVALID_COST"

	// Session errors
	CodeSessionNameEmpty       Code = "SESSION_NAME_EMPTY"
	CodeSessionEnded           Code = "SESSION_ENDED"
	CodeSessionInvalidPhase    Code = "SESSION_INVALID_PHASE"
	CodeSessionInvalidSide     Code = "SESSION_INVALID_SIDE"
	CodeInsufficientCommand    Code = "INSUFFICIENT_COMMAND_POINTS"
	CodeStratagemPhaseMismatch Code = "STRATAGEM_PHASE_MISMATCH"
	CodeStratagemTurnMismatch  Code = "STRATAGEM_TURN_MISMATCH"
	CodeStratagemAlreadyUsed   Code = "STRATAGEM_ALREADY_USED_THIS_PHASE"

	// Unit errors
	CodeUnitNotDeployed Code = "UNIT_NOT_DEPLOYED"
	CodeUnitDestroyed   Code = "UNIT_DESTROYED"
	CodeUnitNotFound    Code = "UNIT_NOT_FOUND"

	// Revert errors
	CodeRevertTargetNotFound  Code = "REVERT_TARGET_NOT_FOUND"
	CodeRevertAlreadyReverted Code = "REVERT_ALREADY_REVERTED"
	CodeRevertOfRevert        Code = "REVERT_OF_REVERT"
	CodeRevertHasDependents   Code = "REVERT_HAS_DEPENDENTS"

	// AI errors
	CodeAIOutputInvalid    Code = "AI_OUTPUT_INVALID"
	CodeAIProviderFailure  Code = "AI_PROVIDER_FAILURE"
	CodeSourceInvalidURL   Code = "SOURCE_INVALID_URL"
	CodeSourceInvalidState Code = "SOURCE_INVALID_STATE"

	// Auth errors
	CodeAuthTokenMissing Code = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid Code = "AUTH_TOKEN_INVALID"
	CodeAuthForbidden    Code = "AUTH_FORBIDDEN"

	// Request errors
	CodeInvalidInput Code = "INVALID_INPUT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeFactionNameEmpty,
		CodeDatasheetNameEmpty,
		CodeDatasheetInvalidStats,
		CodeDetachmentNameEmpty,
		CodeAbilityNameEmpty,
		CodeWeaponInvalidProfile,
		CodeStratagemNameEmpty,
		CodeStratagemInvalidCost,
		CodeSessionNameEmpty,
		CodeSessionInvalidPhase,
		CodeSessionInvalidSide,
		CodeSourceInvalidURL,
		CodeAIOutputInvalid,
		CodeInvalidInput:
		return http.StatusBadRequest

	// Unauthorized / forbidden
	case CodeAuthTokenMissing, CodeAuthTokenInvalid:
		return http.StatusUnauthorized
	case CodeAuthForbidden:
		return http.StatusForbidden

	// Not found
	case CodeNotFound, CodeUnitNotFound, CodeRevertTargetNotFound:
		return http.StatusNotFound

	// Conflict - state disallows the operation
	case CodeFactionNameTaken,
		CodeDatasheetNameTaken,
		CodeDatasheetHasDependents,
		CodeSessionEnded,
		CodeInsufficientCommand,
		CodeStratagemPhaseMismatch,
		CodeStratagemTurnMismatch,
		CodeStratagemAlreadyUsed,
		CodeUnitNotDeployed,
		CodeUnitDestroyed,
		CodeRevertAlreadyReverted,
		CodeRevertOfRevert,
		CodeRevertHasDependents,
		CodeSourceInvalidState,
		CodeConflict:
		return http.StatusConflict

	// Upstream provider failure
	case CodeAIProviderFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
