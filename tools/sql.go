package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/internal/database"
	"github.com/xiaokk2024/mymanus1/tools/base"
)

// SQLParams defines the parameters for sql_inter
type SQLParams struct {
	SQLQuery string `json:"sql_query" schema:"required" description:"The SQL query to execute in the database."`
}

// SQLTool runs a query and returns the rows as a JSON array of arrays.
type SQLTool struct {
	base.BaseTool
	db     database.Provider
	logger *zap.Logger
}

// NewSQLTool creates the sql_inter tool.
func NewSQLTool(db database.Provider, logger *zap.Logger) *SQLTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLTool{
		BaseTool: base.BaseTool{
			ToolName: "sql_inter",
			ToolDesc: "Call this function when the user needs a database query. It runs a piece of SQL " +
				"on the configured MySQL (or PostgreSQL) server and returns the result rows. It only " +
				"queries; to load a table into the code environment use extract_data.",
			Example: `{"sql_query": "SHOW TABLES;"}`,
		},
		db:     db,
		logger: logger,
	}
}

// Parameters returns the parameters struct
func (t *SQLTool) Parameters() interface{} {
	return &SQLParams{}
}

// Execute runs the query.
func (t *SQLTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var args SQLParams
	if err := DecodeParams(params, &args); err != nil {
		return "", err
	}

	table, err := queryTable(ctx, t.db, args.SQLQuery)
	if err != nil {
		return "", err
	}
	t.logger.Debug("sql query finished", zap.Int("rows", table.Len()))

	data, err := json.Marshal(table.Rows)
	if err != nil {
		return "", NewToolError(CodeExecutionFailed, "Failed to encode query result").
			WithDetail("error", err.Error())
	}
	return string(data), nil
}

// ExtractParams defines the parameters for extract_data
type ExtractParams struct {
	SQLQuery string `json:"sql_query" schema:"required" description:"The SQL query that selects the table to extract."`
	DFName   string `json:"df_name" schema:"required,pattern:^[A-Za-z_][A-Za-z0-9_]*$" description:"The name of the variable that will hold the extracted table in the code environment."`
}

// ExtractTool loads a query result into the session namespace.
type ExtractTool struct {
	base.BaseTool
	db     database.Provider
	logger *zap.Logger
}

// NewExtractTool creates the extract_data tool.
func NewExtractTool(db database.Provider, logger *zap.Logger) *ExtractTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractTool{
		BaseTool: base.BaseTool{
			ToolName: "extract_data",
			ToolDesc: "Extracts a table from the database into the current code environment, where " +
				"python_inter and fig_inter can read it as a dict of column name to values. This " +
				"function only extracts; to query use sql_inter.",
			Example: `{"sql_query": "SELECT * FROM user_churn", "df_name": "user_churn"}`,
		},
		db:     db,
		logger: logger,
	}
}

// Parameters returns the parameters struct
func (t *ExtractTool) Parameters() interface{} {
	return &ExtractParams{}
}

// Execute extracts into a throwaway namespace; only useful for validation.
func (t *ExtractTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	return t.ExecuteInNamespace(ctx, params, NewNamespace())
}

// ExecuteInNamespace stores the query result under df_name.
func (t *ExtractTool) ExecuteInNamespace(ctx context.Context, params json.RawMessage, ns *Namespace) (string, error) {
	var args ExtractParams
	if err := DecodeParams(params, &args); err != nil {
		return "", err
	}

	table, err := queryTable(ctx, t.db, args.SQLQuery)
	if err != nil {
		return "", err
	}
	ns.Set(args.DFName, table)

	t.logger.Debug("table extracted",
		zap.String("name", args.DFName),
		zap.Int("rows", table.Len()),
		zap.Strings("columns", table.Columns))
	return fmt.Sprintf("Created table variable %s (%d rows, columns: %v) holding the extracted data.",
		args.DFName, table.Len(), table.Columns), nil
}

func queryTable(ctx context.Context, provider database.Provider, query string) (*database.Table, error) {
	if provider == nil {
		return nil, NewToolError(CodeNotConfigured, database.ErrNotConfigured.Error())
	}
	db, err := provider.DB()
	if err != nil {
		if errors.Is(err, database.ErrNotConfigured) {
			return nil, NewToolError(CodeNotConfigured, err.Error())
		}
		return nil, NewToolError(CodeRequestFailed, "Database connection failed").
			WithDetail("error", err.Error())
	}

	table, err := database.Query(ctx, db, query)
	if err != nil {
		return nil, NewToolError(CodeExecutionFailed, "SQL execution error").
			WithDetail("error", err.Error())
	}
	return table, nil
}
