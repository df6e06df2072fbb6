package models

type AccountMainType string

const (
	AccountMainTypeAsset     AccountMainType = "Asset"
	AccountMainTypeLiability AccountMainType = "Liability"
	AccountMainTypeEquity    AccountMainType = "Equity"
	AccountMainTypeIncome    AccountMainType = "Income"
	AccountMainTypeExpense   AccountMainType = "Expense"
)

func (t AccountMainType) IsValid() bool {
	switch t {
	case AccountMainTypeAsset, AccountMainTypeLiability, AccountMainTypeEquity,
		AccountMainTypeIncome, AccountMainTypeExpense:
		return true
	}
	return false
}

type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// NormalBalanceForMainType derives the sign convention from the account
// category: asset/expense accounts grow with debits, the rest with credits.
func NormalBalanceForMainType(mainType AccountMainType) NormalBalance {
	switch mainType {
	case AccountMainTypeAsset, AccountMainTypeExpense:
		return NormalBalanceDebit
	default:
		return NormalBalanceCredit
	}
}

// Sign returns +1 for debit-normal and -1 for credit-normal.
func (n NormalBalance) Sign() int {
	if n == NormalBalanceDebit {
		return 1
	}
	return -1
}

type ReferenceType string

const (
	ReferenceTypeJournal             ReferenceType = "JN"
	ReferenceTypeInvoice             ReferenceType = "IV"
	ReferenceTypeBill                ReferenceType = "BL"
	ReferenceTypePayment             ReferenceType = "PM"
	ReferenceTypeOpeningBalance      ReferenceType = "OB"
	ReferenceTypeInventoryAdjustment ReferenceType = "IVA"
	ReferenceTypeFixedAsset          ReferenceType = "FA"
	ReferenceTypeRepair              ReferenceType = "RP"
)

type InventoryMovementType string

const (
	InventoryMovementTypePurchase      InventoryMovementType = "PUR"
	InventoryMovementTypeSale          InventoryMovementType = "SAL"
	InventoryMovementTypeAdjustmentIn  InventoryMovementType = "ADI"
	InventoryMovementTypeAdjustmentOut InventoryMovementType = "ADO"
)

func (t InventoryMovementType) IsInbound() bool {
	return t == InventoryMovementTypePurchase || t == InventoryMovementTypeAdjustmentIn
}
