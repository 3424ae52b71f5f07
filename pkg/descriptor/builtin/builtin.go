// Package builtin provides the stock Python/pandas descriptors.
package builtin

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
)

const (
	importPandas     = "import pandas as pd"
	importSQLAlchemy = "import sqlalchemy"
	depPandas        = "pandas"
	depSQLAlchemy    = "sqlalchemy"
)

func val(v cty.Value) *cty.Value { return &v }

// Register installs every builtin descriptor into reg.
func Register(reg *descriptor.Registry) {
	for name, d := range Descriptors() {
		reg.Register(name, d)
	}
}

// Descriptors returns a fresh set of builtin descriptors keyed by type.
func Descriptors() map[string]descriptor.Descriptor {
	return map[string]descriptor.Descriptor{
		"read_csv":       readCSV(),
		"read_sql":       readSQL(),
		"filter":         filter(),
		"select_columns": selectColumns(),
		"join":           join(),
		"aggregate":      aggregate(),
		"sort":           sortRows(),
		"python":         python(),
		"write_csv":      writeCSV(),
		"write_sql":      writeSQL(),
		"html_report":    htmlReport(),
		"environment":    environment(),
		"connection":     connection(),
	}
}

func readCSV() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewTable,
		Description:  "Read a CSV file into a data frame.",
		Params: []descriptor.Param{
			{Name: "path", Type: cty.String},
			{Name: "sep", Type: cty.String, Default: val(cty.StringVal(","))},
		},
	}, `{{ .Output }} = pd.read_csv({{ py .Params.path }}, sep={{ py .Params.sep }})`)
}

func readSQL() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas, depSQLAlchemy},
		Preview:      descriptor.PreviewTable,
		Description:  "Run a query through a connection.",
		Params: []descriptor.Param{
			{Name: "query", Type: cty.String},
		},
	}, `{{ .Output }} = pd.read_sql({{ py .Params.query }}, {{ .Conn }})`)
}

func filter() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewTable,
		Description:  "Keep the rows matching a pandas query expression.",
		Params: []descriptor.Param{
			{Name: "expr", Type: cty.String},
		},
	}, `{{ .Output }} = {{ .Primary }}.query({{ py .Params.expr }})`)
}

func selectColumns() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewTable,
		Description:  "Project a subset of columns.",
		Params: []descriptor.Param{
			{Name: "columns", Type: cty.List(cty.String)},
		},
	}, `{{ .Output }} = {{ .Primary }}[{{ py .Params.columns }}]`)
}

func aggregate() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewTable,
		Description:  "Group rows and aggregate columns.",
		Params: []descriptor.Param{
			{Name: "by", Type: cty.List(cty.String)},
			{Name: "agg", Type: cty.Map(cty.String)},
		},
	}, `{{ .Output }} = {{ .Primary }}.groupby({{ py .Params.by }}, as_index=False).agg({{ py .Params.agg }})`)
}

func sortRows() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewTable,
		Description:  "Sort rows by one or more columns.",
		Params: []descriptor.Param{
			{Name: "by", Type: cty.List(cty.String)},
			{Name: "ascending", Type: cty.Bool, Default: val(cty.True)},
		},
	}, `{{ .Output }} = {{ .Primary }}.sort_values(by={{ py .Params.by }}, ascending={{ py .Params.ascending }})`)
}

func writeCSV() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Sink:         true,
		Description:  "Write a data frame to a CSV file.",
		Params: []descriptor.Param{
			{Name: "path", Type: cty.String},
			{Name: "index", Type: cty.Bool, Default: val(cty.False)},
		},
	}, `{{ .Primary }}.to_csv({{ py .Params.path }}, index={{ py .Params.index }})`)
}

func writeSQL() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas, depSQLAlchemy},
		Sink:         true,
		Description:  "Write a data frame to a table through a connection.",
		Params: []descriptor.Param{
			{Name: "table", Type: cty.String},
			{Name: "if_exists", Type: cty.String, Default: val(cty.StringVal("replace"))},
		},
	}, `{{ .Primary }}.to_sql({{ py .Params.table }}, {{ .Conn }}, if_exists={{ py .Params.if_exists }}, index=False)`)
}

const renderReport = `def _flowscript_render_report(title, df):
    return "<h1>{}</h1>\n{}".format(html.escape(title), df.to_html(index=False))`

func htmlReport() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Imports:      []string{"import html", importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewHTML,
		Functions:    []descriptor.Function{{Name: "_flowscript_render_report", Code: renderReport}},
		Description:  "Render a data frame as an HTML document.",
		Params: []descriptor.Param{
			{Name: "title", Type: cty.String, Default: val(cty.StringVal("Report"))},
		},
	}, `{{ .Output }} = _flowscript_render_report({{ py .Params.title }}, {{ .Primary }})`)
}

func connection() descriptor.Descriptor {
	return descriptor.MustTemplate(descriptor.Spec{
		Category:     descriptor.Connection,
		Imports:      []string{importSQLAlchemy},
		Dependencies: []string{depSQLAlchemy},
		Description:  "Create a SQLAlchemy engine shared by SQL steps.",
		Params: []descriptor.Param{
			{Name: "url", Type: cty.String},
		},
	}, `{{ .Output }} = sqlalchemy.create_engine({{ py .Params.url }})`)
}
