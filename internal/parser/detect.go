package parser

import (
	"strings"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// typeRule distinguishes the statement type within a bank. allOf tokens must
// all be present; anyOf needs one. Either list may be empty.
type typeRule struct {
	stype models.StatementType
	allOf []string
	anyOf []string
}

// formatRule identifies one bank. Rules are evaluated in declaration order:
// the first bank whose tokens match wins, and within a bank the first
// matching type rule wins. A bank match with no type match yields
// (bank, Unknown). New banks are added by appending rules here — existing
// precedence must never change.
type formatRule struct {
	bank       models.Bank
	bankTokens []string
	typeRules  []typeRule
}

var formatRules = []formatRule{
	{
		bank:       models.BankTD,
		bankTokens: []string{"tdcanadatrust", "tdbank"},
		typeRules: []typeRule{
			{stype: models.StatementCreditCard, allOf: []string{"statementdate", "previousstatement"}},
			{stype: models.StatementChequing, allOf: []string{"openingbalance", "closingbalance"}},
		},
	},
	{
		bank:       models.BankRBC,
		bankTokens: []string{"royalbankofcanada", "rbcroyalbank"},
		typeRules: []typeRule{
			{stype: models.StatementChequing, allOf: []string{"accountsummary", "openingbalance"}},
			{stype: models.StatementCreditCard, anyOf: []string{"visaaccount"}},
		},
	},
	{
		bank:       models.BankCIBC,
		bankTokens: []string{"cibc"},
		typeRules: []typeRule{
			{stype: models.StatementCreditCard, allOf: []string{"accountsummary", "availablecredit"}},
			{stype: models.StatementChequing, anyOf: []string{"accountstatement", "depositsandwithdrawals"}},
		},
	},
	{
		bank:       models.BankBMO,
		bankTokens: []string{"bankofmontreal", "bmo"},
		typeRules: []typeRule{
			{stype: models.StatementCreditCard, anyOf: []string{"bmomastercard", "creditlimit"}},
			{stype: models.StatementChequing, anyOf: []string{"accountsummary", "chequingaccount"}},
		},
	},
}

// DetectFormat identifies the bank and statement type from the first page's
// text. The page is flattened to lowercase with all whitespace removed
// before token matching.
func DetectFormat(firstPageText string) (models.Bank, models.StatementType) {
	text := FlattenText(firstPageText)

	for _, rule := range formatRules {
		if !containsAny(text, rule.bankTokens) {
			continue
		}
		for _, tr := range rule.typeRules {
			if matchesTypeRule(text, tr) {
				return rule.bank, tr.stype
			}
		}
		return rule.bank, models.StatementUnknown
	}
	return models.BankUnknown, models.StatementUnknown
}

func matchesTypeRule(text string, tr typeRule) bool {
	for _, tok := range tr.allOf {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	if len(tr.anyOf) == 0 {
		return len(tr.allOf) > 0
	}
	return containsAny(text, tr.anyOf)
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
