package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showHelp() {
	helpText := tview.NewTextView()
	helpText.SetBackgroundColor(ColorBg)
	helpText.SetTextColor(ColorFg)
	helpText.SetDynamicColors(true)
	helpText.SetBorder(true)
	helpText.SetBorderColor(ColorBorder)
	helpText.SetTitle(" Help ")
	helpText.SetTitleColor(ColorTitle)

	helpText.SetText(`
 [yellow]Enter[-]   send the typed message to the receiver
 [yellow]Tab[-]     toggle between input and scrolling the view
 [yellow]F1[-]      this help
 [yellow]F8[-]      clear the view (display only, nothing is deleted)
 [yellow]F6/Esc[-]  log out and switch identity
 [yellow]F10[-]     quit

 Sent messages show [gray]○[-] until the server confirms them,
 then [green]✓[-] once they appear in a snapshot.

 Press Esc to close this help.`)

	helpText.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Key() == tcell.KeyF1 {
			a.pages.RemovePage("help")
			a.app.SetFocus(a.messageInput)
			return nil
		}
		return event
	})

	width := 64
	height := 16

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(helpText, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("help", modal, true, true)
	a.app.SetFocus(helpText)
}
