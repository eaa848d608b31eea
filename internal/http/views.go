package http

import (
	"html/template"
	"time"

	"buchhaltung/internal/catalog"
	"buchhaltung/internal/core"
)

const defaultView = "dashboard"

// view is one top-level section of the page. Exactly one is active.
type view struct {
	Name     string
	Label    string
	Template string
}

var views = []view{
	{Name: "dashboard", Label: "Dashboard", Template: "view_dashboard"},
	{Name: "incomes", Label: "Einnahmen", Template: "view_incomes"},
	{Name: "expenses", Label: "Ausgaben", Template: "view_expenses"},
	{Name: "projects", Label: "Projekte", Template: "view_projects"},
	{Name: "clients", Label: "Kunden", Template: "view_clients"},
	{Name: "documents", Label: "Dokumente", Template: "view_documents"},
}

func findView(name string) (view, bool) {
	for _, v := range views {
		if v.Name == name {
			return v, true
		}
	}
	return view{}, false
}

type navItem struct {
	Name   string
	Label  string
	Active bool
}

// pageData drives both the full shell and the view partial. OOB marks the
// navigation for an out-of-band swap.
type pageData struct {
	Title   string
	View    string
	Nav     []navItem
	OOB     bool
	Content template.HTML
}

func newPageData(active view, content template.HTML, oob bool) pageData {
	nav := make([]navItem, len(views))
	for i, v := range views {
		nav[i] = navItem{Name: v.Name, Label: v.Label, Active: v.Name == active.Name}
	}
	return pageData{
		Title:   active.Label,
		View:    active.Name,
		Nav:     nav,
		OOB:     oob,
		Content: content,
	}
}

// formData is what every entry form renders from.
type formData struct {
	Catalog *catalog.Snapshot
	Today   string
	Items   itemsEditor
}

func (s *Server) newFormData() formData {
	return formData{
		Catalog: s.ledger.Catalog().Snapshot(),
		Today:   core.FormatDate(time.Now()),
		Items:   blankItemsEditor(),
	}
}
