package core

import "fmt"

const (
	// OneCKB is the number of shannons in one CKB.
	OneCKB uint64 = 100_000_000

	AccountSuffix = ".bit"
)

var WitnessHeader = []byte("das")

const (
	WitnessHeaderBytes = 3
	WitnessTypeBytes   = 4
	WitnessLengthBytes = 4
)

type DataType uint32

const (
	DataTypeActionData              DataType = 0
	DataTypeAccountCell             DataType = 2
	DataTypeSubAccount              DataType = 8
	DataTypeSubAccountMintSign      DataType = 9
	DataTypeSubAccountPriceRule     DataType = 11
	DataTypeSubAccountPreservedRule DataType = 12
	DataTypeSubAccountRenewSign     DataType = 14
	DataTypeDeviceKeyList           DataType = 15
)

func (d DataType) String() string {
	switch d {
	case DataTypeActionData:
		return "ActionData"
	case DataTypeAccountCell:
		return "AccountCellData"
	case DataTypeSubAccount:
		return "SubAccount"
	case DataTypeSubAccountMintSign:
		return "SubAccountMintSign"
	case DataTypeSubAccountPriceRule:
		return "SubAccountPriceRule"
	case DataTypeSubAccountPreservedRule:
		return "SubAccountPreservedRule"
	case DataTypeSubAccountRenewSign:
		return "SubAccountRenewSign"
	case DataTypeDeviceKeyList:
		return "DeviceKeyListEntityData"
	default:
		return fmt.Sprintf("DataType(%d)", uint32(d))
	}
}

type AccountStatus uint8

const (
	AccountStatusNormal AccountStatus = iota
	AccountStatusSelling
	AccountStatusAuction
	AccountStatusLockedForCrossChain
	AccountStatusApprovedTransfer
)

type LockRole uint8

const (
	LockRoleOwner LockRole = iota
	LockRoleManager
)

func (r LockRole) String() string {
	if r == LockRoleOwner {
		return "owner"
	}
	return "manager"
}

type DasLockType uint8

const (
	DasLockTypeXXX DasLockType = iota
	DasLockTypeCKBMulti
	DasLockTypeCKBSingle
	DasLockTypeETH
	DasLockTypeTRON
	DasLockTypeETHTypedData
	DasLockTypeMIXIN
	DasLockTypeDoge
	DasLockTypeWebAuthn
)

func (t DasLockType) String() string {
	switch t {
	case DasLockTypeCKBMulti:
		return "ckb-multi"
	case DasLockTypeCKBSingle:
		return "ckb-single"
	case DasLockTypeETH:
		return "eth"
	case DasLockTypeTRON:
		return "tron"
	case DasLockTypeETHTypedData:
		return "eth-typed-data"
	case DasLockTypeMIXIN:
		return "mixin"
	case DasLockTypeDoge:
		return "doge"
	case DasLockTypeWebAuthn:
		return "webauthn"
	default:
		return fmt.Sprintf("lock-type(%d)", uint8(t))
	}
}

type SubAccountAction string

const (
	SubActionCreate          SubAccountAction = "create"
	SubActionEdit            SubAccountAction = "edit"
	SubActionRenew           SubAccountAction = "renew"
	SubActionRecycle         SubAccountAction = "recycle"
	SubActionCreateApproval  SubAccountAction = "create_approval"
	SubActionDelayApproval   SubAccountAction = "delay_approval"
	SubActionRevokeApproval  SubAccountAction = "revoke_approval"
	SubActionFulfillApproval SubAccountAction = "fulfill_approval"
)

func ParseSubAccountAction(s string) (SubAccountAction, bool) {
	switch a := SubAccountAction(s); a {
	case SubActionCreate, SubActionEdit, SubActionRenew, SubActionRecycle,
		SubActionCreateApproval, SubActionDelayApproval, SubActionRevokeApproval, SubActionFulfillApproval:
		return a, true
	}
	return "", false
}

type SubAccountConfigFlag uint8

const (
	FlagManual       SubAccountConfigFlag = 0
	FlagCustomScript SubAccountConfigFlag = 1
	FlagCustomRule   SubAccountConfigFlag = 255
)

func (f SubAccountConfigFlag) String() string {
	switch f {
	case FlagManual:
		return "manual"
	case FlagCustomScript:
		return "custom_script"
	case FlagCustomRule:
		return "custom_rule"
	default:
		return fmt.Sprintf("flag(%d)", uint8(f))
	}
}

type CustomRuleStatus uint8

const (
	CustomRuleOff CustomRuleStatus = iota
	CustomRuleOn
)

// Source selects which cell group a cell index refers to.
type Source uint8

const (
	SourceInput Source = iota + 1
	SourceOutput
	SourceCellDep
)

func (s Source) String() string {
	switch s {
	case SourceInput:
		return "inputs"
	case SourceOutput:
		return "outputs"
	case SourceCellDep:
		return "cell_deps"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// Time units in seconds.
const (
	Minute uint64 = 60
	Hour          = 60 * Minute
	Day           = 24 * Hour
	Year          = 365 * Day
)

// Transaction-level actions carried by the action witness.
const (
	ActionEnableSubAccount        = "enable_sub_account"
	ActionUpdateSubAccount        = "update_sub_account"
	ActionConfigSubAccount        = "config_sub_account"
	ActionCollectSubAccountProfit = "collect_sub_account_profit"
	ActionCreateDeviceKeyList     = "create_device_key_list"
	ActionUpdateDeviceKeyList     = "update_device_key_list"
	ActionDestroyDeviceKeyList    = "destroy_device_key_list"
)
