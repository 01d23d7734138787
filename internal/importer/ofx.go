package importer

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/model"
)

// OFXParser parses OFX/QFX bank and credit card statements.
type OFXParser struct{}

var severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)`)

// Format returns the parser name.
func (p *OFXParser) Format() string { return "ofx" }

// Parse reads every statement in an OFX document into transactions for accountID.
// FITIDs become transaction ids; transactions without one get a generated id.
func (p *OFXParser) Parse(r io.Reader, accountID string) ([]model.Transaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX: %w", err)
	}

	// Some banks emit blank lines before the header and mixed-case severities.
	cleaned := strings.TrimLeft(string(content), " \t\r\n")
	cleaned = severityPattern.ReplaceAllStringFunc(cleaned, strings.ToUpper)

	resp, err := ofxgo.ParseResponse(strings.NewReader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("parsing OFX: %w", err)
	}

	var stmts []statement
	for _, msg := range resp.Bank {
		if s, ok := msg.(*ofxgo.StatementResponse); ok && s.BankTranList != nil {
			stmts = append(stmts, statement{acct: string(s.BankAcctFrom.AcctID), txns: s.BankTranList.Transactions})
		}
	}
	for _, msg := range resp.CreditCard {
		if s, ok := msg.(*ofxgo.CCStatementResponse); ok && s.BankTranList != nil {
			stmts = append(stmts, statement{acct: string(s.CCAcctFrom.AcctID), txns: s.BankTranList.Transactions})
		}
	}

	seq := id.NewSequencer()
	var txns []model.Transaction
	for _, st := range stmts {
		for _, ot := range st.txns {
			txn := convertOFX(ot, st.acct)
			txn.AccountID = accountID
			if txn.ID == "" {
				txn.ID = seq.Next(id.Reference(txn.Date, txn.Description))
			}
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

type statement struct {
	acct string
	txns []ofxgo.Transaction
}

func convertOFX(ot ofxgo.Transaction, bankAcct string) model.Transaction {
	name := strings.TrimSpace(string(ot.Name))
	if ot.Payee != nil && ot.Payee.Name != "" {
		name = strings.TrimSpace(string(ot.Payee.Name))
	}
	memo := strings.TrimSpace(string(ot.Memo))

	desc := name
	if memo != "" && !strings.EqualFold(memo, name) {
		if desc == "" {
			desc = memo
		} else {
			desc = name + ", " + memo
		}
	}

	posted := ot.DtPosted.Time.UTC()
	amount := decimal.NewFromBigRat(&ot.TrnAmt.Rat, 2)
	raw := map[string]string{
		"TRNTYPE":  ot.TrnType.String(),
		"DTPOSTED": posted.Format(time.RFC3339),
		"TRNAMT":   amount.String(),
		"FITID":    string(ot.FiTID),
		"NAME":     name,
		"ACCTID":   bankAcct,
	}
	if memo != "" {
		raw["MEMO"] = memo
	}
	if ot.CheckNum != "" {
		raw["CHECKNUM"] = string(ot.CheckNum)
	}

	return model.Transaction{
		ID:          strings.TrimSpace(string(ot.FiTID)),
		Date:        time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC),
		Description: desc,
		Amount:      amount,
		RawFields:   raw,
	}
}
