package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Account struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Code          string          `gorm:"uniqueIndex;size:100;not null" json:"code"`
	Name          string          `gorm:"index;size:100;not null" json:"name"`
	MainType      AccountMainType `gorm:"type:enum('Asset', 'Liability', 'Equity', 'Income', 'Expense');default:'Expense';index;size:10;not null" json:"mainType"`
	NormalBalance NormalBalance   `gorm:"size:16;not null;default:'DEBIT';index" json:"normal_balance"`
	// Hierarchy. Level is 1 for roots; every child's level is parent+1.
	// AncestorPath materializes the ancestor id chain ("/" for roots,
	// "/1/4/" for a node under 4 under 1) so balance propagation resolves
	// ancestors with one parse instead of a tree walk per posting.
	ParentAccountId int    `gorm:"index" json:"parentAccountId"`
	Level           int    `gorm:"not null;default:1" json:"level"`
	IsGroup         *bool  `gorm:"not null;default:false;index" json:"is_group"`
	AncestorPath    string `gorm:"size:255;index" json:"ancestor_path"`
	// CurrentBalance is a materialized view over posted journal lines,
	// mutated only by the balance workflow inside a posting transaction
	// and recomputable from history.
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	Description    string          `gorm:"type:text" json:"description"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	MainType    AccountMainType `json:"mainType"`
	ParentCode  string          `json:"parent_code"`
	IsGroup     bool            `json:"is_group"`
	Description string          `json:"description"`
}

type AccountTreeNode struct {
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Level    int                `json:"level"`
	IsGroup  bool               `json:"is_group"`
	Balance  decimal.Decimal    `json:"balance"`
	Children []*AccountTreeNode `json:"children"`
}

func (a *Account) GetId() int {
	return a.ID
}

// NormalBalanceSign returns +1 for debit-normal accounts and -1 for
// credit-normal accounts.
func (a *Account) NormalBalanceSign() int {
	return a.NormalBalance.Sign()
}

// AncestorIds parses the materialized path into ids ordered root first.
func (a *Account) AncestorIds() []int {
	parts := strings.Split(strings.Trim(a.AncestorPath, "/"), "/")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func childPath(parent *Account) string {
	return parent.AncestorPath + strconv.Itoa(parent.ID) + "/"
}

func accountCacheKey(code string) string {
	return "Account:code:" + code
}

func invalidateAccountCache(code string) {
	_ = config.DeleteRedisKey(accountCacheKey(code))
}

// validate input for create. Walks the ancestors of the proposed parent so
// a corrupt path (cycle) is caught before insertion.
func (input *NewAccount) validate(ctx context.Context, db *gorm.DB) (*Account, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, InvalidHierarchyError{AccountCode: input.Code, Reason: "code is required"}
	}
	if !input.MainType.IsValid() {
		return nil, InvalidHierarchyError{AccountCode: input.Code, Reason: "unknown account category"}
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Account{}).Where("code = ?", input.Code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, InvalidHierarchyError{AccountCode: input.Code, Reason: "code already exists"}
	}

	if input.ParentCode == "" {
		return nil, nil
	}

	var parent Account
	if err := db.WithContext(ctx).Where("code = ?", input.ParentCode).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, InvalidHierarchyError{AccountCode: input.Code, Reason: "parent " + input.ParentCode + " not found"}
		}
		return nil, err
	}
	if parent.IsGroup == nil || !*parent.IsGroup {
		return nil, InvalidHierarchyError{AccountCode: input.Code, Reason: "parent " + input.ParentCode + " is not a group account"}
	}
	if err := checkAncestorChain(ctx, db, &parent); err != nil {
		return nil, err
	}
	return &parent, nil
}

// checkAncestorChain walks parent links up to the root and fails on a cycle
// or on level drift between a node and its parent.
func checkAncestorChain(ctx context.Context, db *gorm.DB, start *Account) error {
	seen := map[int]bool{start.ID: true}
	current := start
	for current.ParentAccountId > 0 {
		var parent Account
		if err := db.WithContext(ctx).First(&parent, current.ParentAccountId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return InvalidHierarchyError{AccountCode: current.Code, Reason: "parent account missing"}
			}
			return err
		}
		if seen[parent.ID] {
			return InvalidHierarchyError{AccountCode: start.Code, Reason: "cycle detected in ancestor chain"}
		}
		if current.Level != parent.Level+1 {
			return InvalidHierarchyError{AccountCode: current.Code, Reason: "level does not match parent level + 1"}
		}
		seen[parent.ID] = true
		current = &parent
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	db := config.GetDB()

	parent, err := input.validate(ctx, db)
	if err != nil {
		return nil, err
	}

	account := Account{
		Code:          input.Code,
		Name:          input.Name,
		MainType:      input.MainType,
		NormalBalance: NormalBalanceForMainType(input.MainType),
		Level:         1,
		AncestorPath:  "/",
		IsGroup:       &input.IsGroup,
		Description:   input.Description,
		IsActive:      utils.NewTrue(),
	}
	if parent != nil {
		account.ParentAccountId = parent.ID
		account.Level = parent.Level + 1
		account.AncestorPath = childPath(parent)
	}

	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	invalidateAccountCache(account.Code)
	return &account, nil
}

// ResolveAccount looks an account up by code, serving repeated resolutions
// from redis. The cache is invalidated on account writes but not on
// postings, so the result carries no balance: CurrentBalance is always
// zero here. Balances are read through the ledger (workflow.BalanceOf).
func ResolveAccount(ctx context.Context, code string) (*Account, error) {
	var account Account
	exists, err := config.GetRedisObject(accountCacheKey(code), &account)
	if err != nil {
		return nil, err
	}
	if exists {
		return &account, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnknownAccountError{AccountCode: code}
		}
		return nil, err
	}
	account.CurrentBalance = decimal.Zero
	if err := config.SetRedisObject(accountCacheKey(code), &account, 10*time.Minute); err != nil {
		return nil, err
	}
	return &account, nil
}

// resolveAccountTx resolves by code inside an open transaction, bypassing
// the cache so posting always sees committed hierarchy state.
func resolveAccountTx(tx *gorm.DB, code string) (*Account, error) {
	var account Account
	if err := tx.Where("code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnknownAccountError{AccountCode: code}
		}
		return nil, err
	}
	return &account, nil
}

func ResolveAccountTx(tx *gorm.DB, code string) (*Account, error) {
	return resolveAccountTx(tx, code)
}

// GetAccountAncestors returns the chain ordered from immediate parent to root.
func GetAccountAncestors(tx *gorm.DB, account *Account) ([]*Account, error) {
	ids := account.AncestorIds()
	if len(ids) == 0 {
		return nil, nil
	}
	var ancestors []*Account
	if err := tx.Where("id IN ?", ids).Find(&ancestors).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Account, len(ancestors))
	for _, a := range ancestors {
		byId[a.ID] = a
	}
	ordered := make([]*Account, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if a, ok := byId[ids[i]]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// subtreeAccountIds returns the account plus every descendant, via the
// materialized path prefix.
func subtreeAccountIds(tx *gorm.DB, account *Account) ([]int, error) {
	prefix := childPath(account)
	var ids []int
	if err := tx.Model(&Account{}).
		Where("id = ? OR ancestor_path LIKE ?", account.ID, prefix+"%").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func subtreeHasPostings(tx *gorm.DB, account *Account) (bool, error) {
	ids, err := subtreeAccountIds(tx, account)
	if err != nil {
		return false, err
	}
	var count int64
	if err := tx.Model(&JournalLine{}).Where("account_id IN ?", ids).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReparentAccount moves an account (and its subtree) under a new parent.
// Rejected once any posted line exists against the subtree, since historical
// aggregation would be corrupted.
func ReparentAccount(ctx context.Context, code string, newParentCode string) (*Account, error) {
	db := config.GetDB()

	account, err := ResolveAccount(ctx, code)
	if err != nil {
		return nil, err
	}
	newParent, err := ResolveAccount(ctx, newParentCode)
	if err != nil {
		var unknown UnknownAccountError
		if errors.As(err, &unknown) {
			return nil, InvalidHierarchyError{AccountCode: code, Reason: "parent " + newParentCode + " not found"}
		}
		return nil, err
	}
	if newParent.IsGroup == nil || !*newParent.IsGroup {
		return nil, InvalidHierarchyError{AccountCode: code, Reason: "parent " + newParentCode + " is not a group account"}
	}
	if newParent.ID == account.ID {
		return nil, InvalidHierarchyError{AccountCode: code, Reason: "self-parent not allowed"}
	}
	for _, ancestorId := range newParent.AncestorIds() {
		if ancestorId == account.ID {
			return nil, InvalidHierarchyError{AccountCode: code, Reason: "reparent would create a cycle"}
		}
	}

	tx := db.Begin()
	if err := checkAncestorChain(ctx, tx, newParent); err != nil {
		tx.Rollback()
		return nil, err
	}
	hasPostings, err := subtreeHasPostings(tx, account)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if hasPostings {
		tx.Rollback()
		return nil, InvalidHierarchyError{AccountCode: code, Reason: "postings exist against subtree; reparent not allowed"}
	}

	account.ParentAccountId = newParent.ID
	account.Level = newParent.Level + 1
	account.AncestorPath = childPath(newParent)
	if err := tx.WithContext(ctx).Model(&Account{}).Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"ParentAccountId": account.ParentAccountId,
			"Level":           account.Level,
			"AncestorPath":    account.AncestorPath,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := rewriteSubtreePaths(tx, ctx, account); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invalidateAccountCache(code)
	return account, nil
}

func rewriteSubtreePaths(tx *gorm.DB, ctx context.Context, parent *Account) error {
	var children []*Account
	if err := tx.WithContext(ctx).Where("parent_account_id = ?", parent.ID).Find(&children).Error; err != nil {
		return err
	}
	for _, child := range children {
		child.Level = parent.Level + 1
		child.AncestorPath = childPath(parent)
		if err := tx.WithContext(ctx).Model(&Account{}).Where("id = ?", child.ID).
			Updates(map[string]interface{}{
				"Level":        child.Level,
				"AncestorPath": child.AncestorPath,
			}).Error; err != nil {
			return err
		}
		invalidateAccountCache(child.Code)
		if err := rewriteSubtreePaths(tx, ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func MarkAccountActive(ctx context.Context, code string, isActive bool) (*Account, error) {
	db := config.GetDB()

	account, err := ResolveAccount(ctx, code)
	if err != nil {
		return nil, err
	}
	tx := db.Begin()
	if err := markChildAccountsActive(tx, ctx, account, isActive); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invalidateAccountCache(code)
	account.IsActive = &isActive
	return account, nil
}

func markChildAccountsActive(tx *gorm.DB, ctx context.Context, main *Account, isActive bool) error {
	err := tx.WithContext(ctx).Model(&Account{}).Where("id = ?", main.ID).Updates(Account{
		IsActive: &isActive,
	}).Error
	if err != nil {
		return err
	}

	// find & update child accounts
	var children []*Account
	err = tx.WithContext(ctx).Where("parent_account_id = ?", main.ID).Find(&children).Error
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := markChildAccountsActive(tx, ctx, child, isActive); err != nil {
			return err
		}
		invalidateAccountCache(child.Code)
	}
	return nil
}

// DeleteAccount removes an account with no children. An account referenced
// by any posted line is soft-deactivated instead of deleted.
func DeleteAccount(ctx context.Context, code string) (*Account, error) {
	db := config.GetDB()

	account, err := ResolveAccount(ctx, code)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Account{}).
		Where("parent_account_id = ?", account.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, InvalidHierarchyError{AccountCode: code, Reason: "account has child account(s)"}
	}

	if err := db.WithContext(ctx).Model(&JournalLine{}).
		Where("account_id = ?", account.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return MarkAccountActive(ctx, code, false)
	}

	if err := db.WithContext(ctx).Delete(&Account{}, account.ID).Error; err != nil {
		return nil, err
	}
	invalidateAccountCache(code)
	return account, nil
}

// GetAccountTree returns the account with balance and the full child tree.
func GetAccountTree(ctx context.Context, code string) (*AccountTreeNode, error) {
	db := config.GetDB()
	var account Account
	if err := db.WithContext(ctx).Where("code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnknownAccountError{AccountCode: code}
		}
		return nil, err
	}
	return buildAccountTree(ctx, db, &account)
}

func buildAccountTree(ctx context.Context, db *gorm.DB, account *Account) (*AccountTreeNode, error) {
	node := &AccountTreeNode{
		Code:    account.Code,
		Name:    account.Name,
		Level:   account.Level,
		IsGroup: account.IsGroup != nil && *account.IsGroup,
		Balance: account.CurrentBalance,
	}
	var children []*Account
	if err := db.WithContext(ctx).Where("parent_account_id = ?", account.ID).
		Order("code").Find(&children).Error; err != nil {
		return nil, err
	}
	for _, child := range children {
		childNode, err := buildAccountTree(ctx, db, child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

func GetAccounts(ctx context.Context, name *string, code *string) ([]*Account, error) {
	db := config.GetDB()
	var results []*Account

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if code != nil && len(*code) > 0 {
		dbCtx = dbCtx.Where("code LIKE ?", *code+"%")
	}
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindAccountDescendantLeafIds returns ids of every postable leaf under the
// account (or the account itself when it is a leaf).
func FindAccountDescendantLeafIds(tx *gorm.DB, account *Account) ([]int, error) {
	if account.IsGroup == nil || !*account.IsGroup {
		return []int{account.ID}, nil
	}
	prefix := childPath(account)
	var ids []int
	if err := tx.Model(&Account{}).
		Where("ancestor_path LIKE ? AND is_group = ?", prefix+"%", false).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
