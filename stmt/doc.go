// Package stmt recognizes the two statement shapes DuckDesk has to mirror
// into its own bookkeeping: ATTACH and DETACH.
//
// It is not a SQL parser. Everything that is not one of those two forms is
// classified as Plain and handed to the engine untouched.
//
// # Usage
//
//	statement := stmt.Classify("ATTACH DATABASE 'databases/hr.db' AS hr")
//	switch statement.Type() {
//	case stmt.AttachStatementType:
//	    // statement.Name == "hr"
//	case stmt.DetachStatementType:
//	case stmt.PlainStatementType:
//	}
//
// # Quoting
//
// QuoteIdent and QuoteLiteral build identifiers and string literals for the
// statements DuckDesk issues itself:
//
//	fmt.Sprintf("ATTACH %s AS %s", stmt.QuoteLiteral(path), stmt.QuoteIdent(name))
package stmt
