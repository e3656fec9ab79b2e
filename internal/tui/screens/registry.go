package screens

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-dispatcher/internal/registry"
)

// RegistryEditor adds, renames and removes declared network printers
type RegistryEditor struct {
	app        *tview.Application
	registry   *registry.Registry
	form       *tview.Form
	list       *tview.List
	details    *tview.TextView
	layout     *tview.Flex
	entries    []registry.Entry
	currentKey string
}

// NewRegistryEditor creates a new registry editor screen
func NewRegistryEditor(app *tview.Application, reg *registry.Registry) *RegistryEditor {
	r := &RegistryEditor{
		app:      app,
		registry: reg,
	}

	r.setupUI()
	return r
}

func (r *RegistryEditor) setupUI() {
	r.list = tview.NewList()
	r.list.SetBorder(true)
	r.list.SetTitle("Network Printers")
	r.list.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		r.selectEntry(index)
		r.app.SetFocus(r.form)
	})

	r.details = tview.NewTextView()
	r.details.SetBorder(true)
	r.details.SetTitle("Printer Details")
	r.details.SetDynamicColors(true)

	r.form = tview.NewForm()
	r.form.SetBorder(true)
	r.form.SetTitle("Declare Printer")
	r.form.AddInputField("Host", "", 30, nil, nil)
	r.form.AddInputField("Port", strconv.Itoa(registry.DefaultPort), 6, tview.InputFieldInteger, nil)
	r.form.AddInputField("Name", "", 30, nil, nil)
	r.form.AddButton("Save", r.save)
	r.form.AddButton("Remove", r.remove)
	r.form.AddButton("Back", func() {
		r.app.SetFocus(r.list)
	})

	rightPanel := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(r.details, 0, 1, false).
		AddItem(r.form, 0, 1, true)

	r.layout = tview.NewFlex().
		AddItem(r.list, 0, 1, true).
		AddItem(rightPanel, 0, 2, false)

	r.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'r':
				r.Refresh()
				return nil
			case 'a':
				r.currentKey = ""
				r.setForm(registry.Entry{Port: registry.DefaultPort})
				r.app.SetFocus(r.form)
				return nil
			}
		}
		return event
	})
}

// Refresh reloads the list from the registry
func (r *RegistryEditor) Refresh() {
	r.list.Clear()
	r.entries = r.registry.All()

	if len(r.entries) == 0 {
		r.list.AddItem("No network printers", "press 'a' to add one", 0, nil)
		r.details.SetText("[yellow]No network printers declared[white]")
		return
	}

	for _, e := range r.entries {
		name := e.Name
		if name == "" {
			name = e.Key()
		}
		r.list.AddItem(name, e.Key(), 0, nil)
	}
}

func (r *RegistryEditor) selectEntry(index int) {
	if index < 0 || index >= len(r.entries) {
		return
	}
	e := r.entries[index]
	r.currentKey = e.Key()
	r.setForm(e)

	r.details.SetText(fmt.Sprintf(`[yellow]Address:[white] %s
[yellow]Name:[white] %s
[yellow]Model:[white] %s
[yellow]Added:[white] %s

[yellow]Save to update, Remove to forget[white]`,
		e.Key(), tview.Escape(e.Name), tview.Escape(e.Model), e.CreatedAt.Format("2006-01-02 15:04")))
}

func (r *RegistryEditor) setForm(e registry.Entry) {
	r.form.GetFormItem(0).(*tview.InputField).SetText(e.Host)
	r.form.GetFormItem(1).(*tview.InputField).SetText(strconv.Itoa(e.Port))
	r.form.GetFormItem(2).(*tview.InputField).SetText(e.Name)
}

// save adds the printer, renaming when host and port already exist. Changing
// the address of a selected printer replaces its entry.
func (r *RegistryEditor) save() {
	host := strings.TrimSpace(r.form.GetFormItem(0).(*tview.InputField).GetText())
	port, _ := strconv.Atoi(r.form.GetFormItem(1).(*tview.InputField).GetText())
	name := strings.TrimSpace(r.form.GetFormItem(2).(*tview.InputField).GetText())

	entry, err := r.registry.Add(host, port, name, "")
	if err != nil {
		r.details.SetText(fmt.Sprintf("[red]✗ %s[white]", tview.Escape(err.Error())))
		return
	}
	if r.currentKey != "" && r.currentKey != entry.Key() {
		r.registry.Remove(r.currentKey)
	}
	r.currentKey = entry.Key()

	r.Refresh()
	r.app.SetFocus(r.list)
	r.details.SetText(fmt.Sprintf("[green]✓ Saved %s[white]", entry.Key()))
}

func (r *RegistryEditor) remove() {
	if r.currentKey == "" {
		r.details.SetText("[red]✗ No printer selected[white]")
		return
	}
	if !r.registry.Remove(r.currentKey) {
		r.details.SetText(fmt.Sprintf("[red]✗ Printer not found: %s[white]", r.currentKey))
		return
	}

	removed := r.currentKey
	r.currentKey = ""
	r.Refresh()
	r.app.SetFocus(r.list)
	r.details.SetText(fmt.Sprintf("[green]✓ Removed %s[white]", removed))
}

// GetRoot returns the root primitive for this screen
func (r *RegistryEditor) GetRoot() tview.Primitive {
	return r.layout
}
