package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
)

var (
	severityPattern  = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	postedDatePrefix = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

var descriptionPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericDescriptions = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// OFXReader reads OFX and QFX statements.
type OFXReader struct{}

// NewOFXReader creates an OFX reader.
func NewOFXReader() *OFXReader {
	return &OFXReader{}
}

// Read parses bank and credit card statements from r. Account IDs become the
// transactions' bank account.
func (o *OFXReader) Read(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	resp, err := o.parse(r)
	if err != nil {
		return res, err
	}

	var bankStmts, ccStmts int
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		o.appendStatement(&res, stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		o.appendStatement(&res, stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	slog.Info("Parsed OFX file",
		"transactions", len(res.Transactions),
		"errors", len(res.Errors),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)
	return res, nil
}

// Accounts lists the distinct account IDs in an OFX file.
func (o *OFXReader) Accounts(r io.Reader) ([]string, error) {
	resp, err := o.parse(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id ofxgo.String) {
		if id != "" && !seen[string(id)] {
			seen[string(id)] = true
			accounts = append(accounts, string(id))
		}
	}
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankAcctFrom.AcctID)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.CCAcctFrom.AcctID)
		}
	}
	return accounts, nil
}

func (o *OFXReader) parse(r io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

func (o *OFXReader) appendStatement(res *Result, txns []ofxgo.Transaction, account string) {
	for i, t := range txns {
		res.Rows++
		txn, err := convertOFX(t, account)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: i + 1, Err: fmt.Errorf("account %s: %w", account, err)})
			continue
		}
		res.Transactions = append(res.Transactions, txn)
	}
}

// preprocessOFX fixes formatting problems banks commonly ship: leading
// blank lines, mixed-case SEVERITY values and SGML tags missing their '>'.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

func convertOFX(t ofxgo.Transaction, account string) (model.Transaction, error) {
	if t.DtPosted.IsZero() {
		return model.Transaction{}, fmt.Errorf("transaction %s has no posted date", t.FiTID)
	}

	amount, _ := t.TrnAmt.Float64()
	txnType := model.TypeCredit
	switch {
	case amount < 0:
		txnType = model.TypeDebit
		amount = -amount
	case amount == 0 && isDebitType(t.TrnType):
		txnType = model.TypeDebit
	}

	txn := model.Transaction{
		Date:        t.DtPosted.Time,
		Description: ofxDescription(t),
		Amount:      amount,
		Type:        txnType,
		BankAccount: account,
	}
	if t.CheckNum != "" {
		txn.Notes = "Check #" + string(t.CheckNum)
	}
	if txn.Description == "" {
		return model.Transaction{}, fmt.Errorf("transaction %s has no description", t.FiTID)
	}

	fitid := strings.TrimSpace(string(t.FiTID))
	if fitid != "" {
		txn.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("ofx:"+account+":"+fitid)).String()
	}
	finalize(&txn, fitid)
	return txn, nil
}

func isDebitType(t any) bool {
	switch t {
	case ofxgo.TrnTypeDebit, ofxgo.TrnTypeFee, ofxgo.TrnTypeSrvChg, ofxgo.TrnTypeATM,
		ofxgo.TrnTypePOS, ofxgo.TrnTypeCheck, ofxgo.TrnTypePayment, ofxgo.TrnTypeCash,
		ofxgo.TrnTypeDirectDebit, ofxgo.TrnTypeRepeatPmt:
		return true
	}
	return false
}

// ofxDescription prefers PAYEE, then NAME, then MEMO when NAME is generic,
// and strips card-processor prefixes.
func ofxDescription(t ofxgo.Transaction) string {
	if t.Payee != nil && t.Payee.Name != "" {
		return strings.TrimSpace(string(t.Payee.Name))
	}

	name := strings.TrimSpace(string(t.Name))
	if t.Memo != "" && (name == "" || genericDescriptions[strings.ToUpper(name)]) {
		name = strings.TrimSpace(string(t.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range descriptionPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(postedDatePrefix.ReplaceAllString(name, ""))
}
