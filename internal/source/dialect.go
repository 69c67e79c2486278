package source

import (
	"fmt"
	"strings"
)

// dialect builds Oracle SQL for the cursor. Identifiers are folded to
// uppercase, matching how Oracle resolves unquoted names, and quoted only
// when they contain special characters or collide with a reserved word.
type dialect struct{}

// QuoteIdentifier returns the Oracle-safe form of an identifier.
func (d dialect) QuoteIdentifier(name string) string {
	upper := strings.ToUpper(name)

	needsQuote := false
	for i, r := range name {
		if i == 0 && r >= '0' && r <= '9' {
			needsQuote = true
			break
		}
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_') {
			needsQuote = true
			break
		}
	}
	if !needsQuote && oracleReservedWords[upper] {
		needsQuote = true
	}

	if needsQuote {
		return `"` + strings.ReplaceAll(upper, `"`, `""`) + `"`
	}
	return upper
}

// oracleReservedWords lists words that cannot appear as unquoted
// identifiers, plus common column names Oracle rejects in some positions.
var oracleReservedWords = map[string]bool{
	"ACCESS": true, "ADD": true, "ALL": true, "ALTER": true, "AND": true,
	"ANY": true, "AS": true, "ASC": true, "BETWEEN": true, "BY": true,
	"CHAR": true, "CHECK": true, "COLUMN": true, "COMMENT": true,
	"CONNECT": true, "CREATE": true, "CURRENT": true, "DATE": true,
	"DECIMAL": true, "DEFAULT": true, "DELETE": true, "DESC": true,
	"DISTINCT": true, "DROP": true, "ELSE": true, "EXISTS": true,
	"FILE": true, "FLOAT": true, "FOR": true, "FROM": true, "GROUP": true,
	"HAVING": true, "IN": true, "INDEX": true, "INSERT": true,
	"INTEGER": true, "INTERSECT": true, "INTO": true, "IS": true,
	"LEVEL": true, "LIKE": true, "LONG": true, "MINUS": true, "MODE": true,
	"NOT": true, "NULL": true, "NUMBER": true, "OF": true, "ON": true,
	"OPTION": true, "OR": true, "ORDER": true, "PRIOR": true, "PUBLIC": true,
	"RAW": true, "RENAME": true, "RESOURCE": true, "ROW": true,
	"ROWID": true, "ROWNUM": true, "ROWS": true, "SELECT": true,
	"SESSION": true, "SET": true, "SHARE": true, "SIZE": true,
	"SMALLINT": true, "START": true, "SYNONYM": true, "SYSDATE": true,
	"TABLE": true, "THEN": true, "TO": true, "TRIGGER": true, "UID": true,
	"UNION": true, "UNIQUE": true, "UPDATE": true, "USER": true,
	"VALUES": true, "VARCHAR": true, "VARCHAR2": true, "VIEW": true,
	"WHERE": true, "WITH": true,
	// Common problematic column names
	"NAME": true, "TYPE": true, "VALUE": true, "KEY": true, "TIME": true,
	"TIMESTAMP": true, "YEAR": true, "MONTH": true, "DAY": true,
	"ZONE": true, "DATA": true, "RESULT": true,
}

// ColumnList joins quoted column names for a SELECT list.
func (d dialect) ColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// BuildColumnsQuery returns the ALL_TAB_COLUMNS lookup for schema
// discovery. Binds: owner, table name.
func (d dialect) BuildColumnsQuery() string {
	return `
		SELECT COLUMN_NAME, DATA_TYPE,
			NVL(DATA_PRECISION, 0), NVL(DATA_SCALE, 0),
			CASE WHEN NULLABLE = 'Y' THEN 1 ELSE 0 END AS is_nullable
		FROM ALL_TAB_COLUMNS
		WHERE OWNER = :1 AND TABLE_NAME = :2
		ORDER BY COLUMN_ID`
}

// BuildFullQuery paginates the whole table with ROW_NUMBER ordered by the
// sync column (primary key as tiebreaker). Binds: startRow, endRow.
func (d dialect) BuildFullQuery(cols []string, table, syncCol, pkCol string) string {
	list := d.ColumnList(cols)
	return fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s, ROW_NUMBER() OVER (ORDER BY %s) AS rn
			FROM %s
		)
		WHERE rn > :1 AND rn <= :2
		ORDER BY rn`,
		list, list, d.orderBy(syncCol, pkCol), d.QuoteIdentifier(table))
}

// BuildIncrementalQuery paginates rows whose sync column is strictly
// greater than the checkpointed value. Binds: sinceValue, startRow, endRow.
func (d dialect) BuildIncrementalQuery(cols []string, table, syncCol, pkCol string) string {
	list := d.ColumnList(cols)
	return fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s, ROW_NUMBER() OVER (ORDER BY %s) AS rn
			FROM %s
			WHERE %s > :1
		)
		WHERE rn > :2 AND rn <= :3
		ORDER BY rn`,
		list, list, d.orderBy(syncCol, pkCol), d.QuoteIdentifier(table),
		d.QuoteIdentifier(syncCol))
}

// BuildMaxValueQuery returns the maximum of one column over the table.
func (d dialect) BuildMaxValueQuery(table, col string) string {
	return fmt.Sprintf(`SELECT MAX(%s) FROM %s`,
		d.QuoteIdentifier(col), d.QuoteIdentifier(table))
}

// BuildCountQuery counts rows, optionally only those past the sync value.
func (d dialect) BuildCountQuery(table, syncCol string, incremental bool) string {
	if incremental {
		return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s > :1`,
			d.QuoteIdentifier(table), d.QuoteIdentifier(syncCol))
	}
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, d.QuoteIdentifier(table))
}

func (d dialect) orderBy(syncCol, pkCol string) string {
	if pkCol != "" && !strings.EqualFold(pkCol, syncCol) {
		return d.QuoteIdentifier(syncCol) + ", " + d.QuoteIdentifier(pkCol)
	}
	return d.QuoteIdentifier(syncCol)
}
