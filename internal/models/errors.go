package models

import "fmt"

const mysqlErrorDuplicateEntryCode = 1062

var (
	ErrorDatabaseUndefined       = fmt.Errorf("database_undefined")
	ErrorDuplicateEntry          = fmt.Errorf("duplicate_entry")
	ErrorInsertFailed            = fmt.Errorf("insert_failed")
	ErrorInvalidInput            = fmt.Errorf("invalid_input")
	ErrorNotFound                = fmt.Errorf("not_found")
	ErrorRowsAffectedCheckFailed = fmt.Errorf("rows_affected_check_failed")
	ErrorSelectFailed            = fmt.Errorf("select_failed")
	ErrorSelectsFailed           = fmt.Errorf("selects_failed")
	ErrorStmtPreparationFailed   = fmt.Errorf("stmt_preparation_failed")
	ErrorUpdateFailed            = fmt.Errorf("update_failed")
)
