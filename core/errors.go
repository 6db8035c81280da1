package core

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	IndexOutOfBound             ErrorCode = "IndexOutOfBound"
	ItemMissing                 ErrorCode = "ItemMissing"
	LengthNotEnough             ErrorCode = "LengthNotEnough"
	Encoding                    ErrorCode = "Encoding"
	HardCodedError              ErrorCode = "HardCodedError"
	InvalidTransactionStructure ErrorCode = "InvalidTransactionStructure"
	InvalidCellData             ErrorCode = "InvalidCellData"
	CellLockCanNotBeModified    ErrorCode = "CellLockCanNotBeModified"
	CellTypeCanNotBeModified    ErrorCode = "CellTypeCanNotBeModified"
	CellCapacityMustReduced     ErrorCode = "CellCapacityMustReduced"
	ActionNotSupported          ErrorCode = "ActionNotSupported"
	ParamsDecodingError         ErrorCode = "ParamsDecodingError"
	AccountIdIsInvalid          ErrorCode = "AccountIdIsInvalid"
	CharSetIsUndefined          ErrorCode = "CharSetIsUndefined"
	AccountCharIsInvalid        ErrorCode = "AccountCharIsInvalid"
	AccountIsTooShort           ErrorCode = "AccountIsTooShort"
	AccountIsTooLong            ErrorCode = "AccountIsTooLong"
	BalanceCellCanNotBeSpent    ErrorCode = "BalanceCellCanNotBeSpent"
	DasLockArgsInvalid          ErrorCode = "DasLockArgsInvalid"
	TxFeeSpentError             ErrorCode = "TxFeeSpentError"
	OverflowError               ErrorCode = "OverflowError"

	WitnessStructureError          ErrorCode = "WitnessStructureError"
	WitnessDataTypeDecodingError   ErrorCode = "WitnessDataTypeDecodingError"
	WitnessReadingError            ErrorCode = "WitnessReadingError"
	WitnessActionDecodingError     ErrorCode = "WitnessActionDecodingError"
	WitnessDataDecodingError       ErrorCode = "WitnessDataDecodingError"
	WitnessDataHashOrTypeMissMatch ErrorCode = "WitnessDataHashOrTypeMissMatch"
	WitnessDataIndexMissMatch      ErrorCode = "WitnessDataIndexMissMatch"
	WitnessEntityDecodingError     ErrorCode = "WitnessEntityDecodingError"
	WitnessEmpty                   ErrorCode = "WitnessEmpty"
	WitnessVersionOrTypeInvalid    ErrorCode = "WitnessVersionOrTypeInvalid"
	SMTNewRootMismatch             ErrorCode = "SMTNewRootMismatch"
	SMTProofVerifyFailed           ErrorCode = "SMTProofVerifyFailed"
	SignMethodUnsupported          ErrorCode = "SignMethodUnsupported"

	AccountCellPermissionDenied ErrorCode = "AccountCellPermissionDenied"

	SubAccountFeatureNotEnabled             ErrorCode = "SubAccountFeatureNotEnabled"
	ConfigManualInvalid                     ErrorCode = "ConfigManualInvalid"
	ConfigCustomRuleInvalid                 ErrorCode = "ConfigCustomRuleInvalid"
	ConfigFlagInvalid                       ErrorCode = "ConfigFlagInvalid"
	ConfigRulesHashMismatch                 ErrorCode = "ConfigRulesHashMismatch"
	ConfigRulesHasSyntaxError               ErrorCode = "ConfigRulesHasSyntaxError"
	ConfigRulesPriceError                   ErrorCode = "ConfigRulesPriceError"
	WitnessParsingError                     ErrorCode = "WitnessParsingError"
	WitnessEditKeyInvalid                   ErrorCode = "WitnessEditKeyInvalid"
	WitnessEditValueError                   ErrorCode = "WitnessEditValueError"
	WitnessSignMintIsRequired               ErrorCode = "WitnessSignMintIsRequired"
	WitnessVersionMismatched                ErrorCode = "WitnessVersionMismatched"
	CanNotMint                              ErrorCode = "CanNotMint"
	AccountIsPreserved                      ErrorCode = "AccountIsPreserved"
	AccountHasNoPrice                       ErrorCode = "AccountHasNoPrice"
	BytesToStringFailed                     ErrorCode = "BytesToStringFailed"
	MinimalProfitToDASNotReached            ErrorCode = "MinimalProfitToDASNotReached"
	ExpirationYearsTooShort                 ErrorCode = "ExpirationYearsTooShort"
	ProfitIsEmpty                           ErrorCode = "ProfitIsEmpty"
	CustomRuleIsOff                         ErrorCode = "CustomRuleIsOff"
	NewExpiredAtIsRequired                  ErrorCode = "NewExpiredAtIsRequired"
	AccountHasNearGracePeriod               ErrorCode = "AccountHasNearGracePeriod"
	AccountHasInGracePeriod                 ErrorCode = "AccountHasInGracePeriod"
	AccountHasExpired                       ErrorCode = "AccountHasExpired"
	AccountStillCanNotBeRecycled            ErrorCode = "AccountStillCanNotBeRecycled"
	MultipleSignRolesIsNotAllowed           ErrorCode = "MultipleSignRolesIsNotAllowed"
	ApprovalExist                           ErrorCode = "ApprovalExist"
	ApprovalActionUndefined                 ErrorCode = "ApprovalActionUndefined"
	ApprovalParamsPlatformLockInvalid       ErrorCode = "ApprovalParamsPlatformLockInvalid"
	ApprovalParamsProtectedUntilInvalid     ErrorCode = "ApprovalParamsProtectedUntilInvalid"
	ApprovalParamsSealedUntilInvalid        ErrorCode = "ApprovalParamsSealedUntilInvalid"
	ApprovalParamsDelayCountRemainInvalid   ErrorCode = "ApprovalParamsDelayCountRemainInvalid"
	ApprovalParamsToLockInvalid             ErrorCode = "ApprovalParamsToLockInvalid"
	ApprovalParamsCanNotBeChanged           ErrorCode = "ApprovalParamsCanNotBeChanged"
	ApprovalParamsDelayCountNotEnough       ErrorCode = "ApprovalParamsDelayCountNotEnough"
	ApprovalParamsDelayCountDecrementError  ErrorCode = "ApprovalParamsDelayCountDecrementError"
	ApprovalParamsSealedUntilIncrementError ErrorCode = "ApprovalParamsSealedUntilIncrementError"
	ApprovalNotRevoked                      ErrorCode = "ApprovalNotRevoked"
	ApprovalInProtectionPeriod              ErrorCode = "ApprovalInProtectionPeriod"
	ApprovalFulfillError                    ErrorCode = "ApprovalFulfillError"
	AccountStatusError                      ErrorCode = "AccountStatusError"
	SubAccountWitnessMismatched             ErrorCode = "SubAccountWitnessMismatched"
	SubAccountSignMintExpiredAtTooLarge     ErrorCode = "SubAccountSignMintExpiredAtTooLarge"
	SubAccountSignMintExpiredAtReached      ErrorCode = "SubAccountSignMintExpiredAtReached"
	SubAccountSignMintSignatureRequired     ErrorCode = "SubAccountSignMintSignatureRequired"
	SubAccountCellCapacityError             ErrorCode = "SubAccountCellCapacityError"
	SubAccountCellAccountIdError            ErrorCode = "SubAccountCellAccountIdError"
	SubAccountCellConsistencyError          ErrorCode = "SubAccountCellConsistencyError"
	SubAccountInitialValueError             ErrorCode = "SubAccountInitialValueError"
	SubAccountSigVerifyError                ErrorCode = "SubAccountSigVerifyError"
	SubAccountFieldNotEditable              ErrorCode = "SubAccountFieldNotEditable"
	SubAccountEditLockError                 ErrorCode = "SubAccountEditLockError"
	SubAccountProfitError                   ErrorCode = "SubAccountProfitError"
	SubAccountCollectProfitError            ErrorCode = "SubAccountCollectProfitError"
	SubAccountBalanceManagerError           ErrorCode = "SubAccountBalanceManagerError"

	FoundKeyListInInput          ErrorCode = "FoundKeyListInInput"
	WitnessArgsInvalid           ErrorCode = "WitnessArgsInvalid"
	NoKeyListInOutput            ErrorCode = "NoKeyListInOutput"
	LockArgLengthIncorrect       ErrorCode = "LockArgLengthIncorrect"
	InvalidLock                  ErrorCode = "InvalidLock"
	KeyListParseError            ErrorCode = "KeyListParseError"
	KeyListNumberIncorrect       ErrorCode = "KeyListNumberIncorrect"
	UpdateParamsInvalid          ErrorCode = "UpdateParamsInvalid"
	DestroyParamsInvalid         ErrorCode = "DestroyParamsInvalid"
	CapacityNotEnough            ErrorCode = "CapacityNotEnough"
	MustUseDasLock               ErrorCode = "MustUseDasLock"
	InconsistentBalanceCellLocks ErrorCode = "InconsistentBalanceCellLocks"
	CapacityReduceTooMuch        ErrorCode = "CapacityReduceTooMuch"
	DuplicatedKeys               ErrorCode = "DuplicatedKeys"
)

// exitCodes holds the numeric code each script reports to the host. Script
// specific tables start at 50 and may overlap across scripts.
var exitCodes = map[ErrorCode]int8{
	IndexOutOfBound:             1,
	ItemMissing:                 2,
	LengthNotEnough:             3,
	Encoding:                    4,
	HardCodedError:              5,
	InvalidTransactionStructure: 6,
	InvalidCellData:             7,
	CellLockCanNotBeModified:    20,
	CellTypeCanNotBeModified:    21,
	CellCapacityMustReduced:     23,
	ActionNotSupported:          27,
	ParamsDecodingError:         28,
	AccountIdIsInvalid:          38,
	CharSetIsUndefined:          66,
	AccountCharIsInvalid:        67,
	AccountIsTooShort:           68,
	AccountIsTooLong:            69,
	BalanceCellCanNotBeSpent:    -79,
	DasLockArgsInvalid:          18,
	TxFeeSpentError:             17,
	OverflowError:               -3,

	WitnessStructureError:          40,
	WitnessDataTypeDecodingError:   41,
	WitnessReadingError:            42,
	WitnessActionDecodingError:     43,
	WitnessDataDecodingError:       46,
	WitnessDataHashOrTypeMissMatch: 47,
	WitnessDataIndexMissMatch:      48,
	WitnessEntityDecodingError:     49,
	WitnessEmpty:                   50,
	WitnessVersionOrTypeInvalid:    53,
	SMTNewRootMismatch:             56,
	SMTProofVerifyFailed:           57,
	SignMethodUnsupported:          58,

	AccountCellPermissionDenied: 53,

	SubAccountFeatureNotEnabled:             50,
	ConfigManualInvalid:                     51,
	ConfigCustomRuleInvalid:                 52,
	ConfigFlagInvalid:                       53,
	ConfigRulesHashMismatch:                 54,
	ConfigRulesHasSyntaxError:               55,
	ConfigRulesPriceError:                   56,
	WitnessParsingError:                     57,
	WitnessEditKeyInvalid:                   58,
	WitnessEditValueError:                   59,
	WitnessSignMintIsRequired:               60,
	WitnessVersionMismatched:                61,
	CanNotMint:                              63,
	AccountIsPreserved:                      65,
	AccountHasNoPrice:                       66,
	BytesToStringFailed:                     67,
	MinimalProfitToDASNotReached:            68,
	ExpirationYearsTooShort:                 69,
	ProfitIsEmpty:                           74,
	CustomRuleIsOff:                         75,
	NewExpiredAtIsRequired:                  76,
	AccountHasNearGracePeriod:               77,
	AccountHasInGracePeriod:                 78,
	AccountHasExpired:                       79,
	AccountStillCanNotBeRecycled:            80,
	MultipleSignRolesIsNotAllowed:           82,
	ApprovalExist:                           87,
	ApprovalActionUndefined:                 88,
	ApprovalParamsPlatformLockInvalid:       89,
	ApprovalParamsProtectedUntilInvalid:     90,
	ApprovalParamsSealedUntilInvalid:        91,
	ApprovalParamsDelayCountRemainInvalid:   92,
	ApprovalParamsToLockInvalid:             93,
	ApprovalParamsCanNotBeChanged:           94,
	ApprovalParamsDelayCountNotEnough:       95,
	ApprovalParamsDelayCountDecrementError:  96,
	ApprovalParamsSealedUntilIncrementError: 97,
	ApprovalNotRevoked:                      98,
	ApprovalInProtectionPeriod:              99,
	ApprovalFulfillError:                    100,
	AccountStatusError:                      101,
	SubAccountWitnessMismatched:             106,
	SubAccountSignMintExpiredAtTooLarge:     108,
	SubAccountSignMintExpiredAtReached:      109,
	SubAccountSignMintSignatureRequired:     110,
	SubAccountCellCapacityError:             111,
	SubAccountCellAccountIdError:            112,
	SubAccountCellConsistencyError:          113,
	SubAccountInitialValueError:             114,
	SubAccountSigVerifyError:                115,
	SubAccountFieldNotEditable:              116,
	SubAccountEditLockError:                 117,
	SubAccountProfitError:                   119,
	SubAccountCollectProfitError:            122,
	SubAccountBalanceManagerError:           123,

	FoundKeyListInInput:          50,
	WitnessArgsInvalid:           51,
	NoKeyListInOutput:            52,
	LockArgLengthIncorrect:       53,
	InvalidLock:                  54,
	KeyListParseError:            55,
	KeyListNumberIncorrect:       57,
	UpdateParamsInvalid:          58,
	DestroyParamsInvalid:         59,
	CapacityNotEnough:            60,
	MustUseDasLock:               61,
	InconsistentBalanceCellLocks: 62,
	CapacityReduceTooMuch:        63,
	DuplicatedKeys:               64,
}

// Exit returns the numeric code surfaced to the host. Unknown codes map to
// HardCodedError.
func (c ErrorCode) Exit() int8 {
	if v, ok := exitCodes[c]; ok {
		return v
	}
	return exitCodes[HardCodedError]
}

type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func Errorf(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewError(code ErrorCode) error {
	return &Error{Code: code}
}

// CodeOf extracts the ErrorCode carried by err. Errors that do not come from
// this package report HardCodedError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return HardCodedError
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
