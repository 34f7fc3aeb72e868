package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showChatScreen() {
	a.pages.RemovePage("auth")
	a.pages.RemovePage("background")

	chatPage := a.createChatPage()
	a.pages.AddPage("chat", chatPage, true, true)
	a.pages.SwitchToPage("chat")

	a.app.SetFocus(a.receiverInput)
	a.refreshChatView()
}

func (a *App) createChatPage() tview.Primitive {
	// Receiver field: the conversation partner is typed, not picked from a
	// roster
	a.receiverInput = tview.NewInputField()
	a.receiverInput.SetLabel("To: ")
	a.receiverInput.SetFieldWidth(0)
	a.receiverInput.SetBackgroundColor(ColorBg)
	a.receiverInput.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	a.receiverInput.SetFieldTextColor(ColorFg)
	a.receiverInput.SetLabelColor(ColorHighlight)
	a.receiverInput.SetBorder(true)
	a.receiverInput.SetBorderColor(ColorBorder)
	a.receiverInput.SetTitle(" Receiver ")
	a.receiverInput.SetTitleColor(ColorTitle)
	a.receiverInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.app.SetFocus(a.messageInput)
		}
	})

	// Conversation view
	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(ColorBorder)
	a.chatView.SetBackgroundColor(ColorBg)
	a.chatView.SetTitle(fmt.Sprintf(" Messages [%s] ", a.currentUser))
	a.chatView.SetTitleColor(ColorTitle)
	a.chatView.SetTextColor(ColorFg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)
	a.chatView.ScrollToEnd()

	// Message input
	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetFieldWidth(0)
	a.messageInput.SetBackgroundColor(ColorBg)
	a.messageInput.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	a.messageInput.SetFieldTextColor(ColorFg)
	a.messageInput.SetLabelColor(ColorHighlight)
	a.messageInput.SetBorder(true)
	a.messageInput.SetBorderColor(ColorBorder)
	a.messageInput.SetTitle(" Message ")
	a.messageInput.SetTitleColor(ColorTitle)

	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.sendMessage(a.receiverInput.GetText(), a.messageInput.GetText())
		}
	})

	// Notice line for validation, send and subscription failures
	a.noticeView = tview.NewTextView()
	a.noticeView.SetBackgroundColor(ColorBg)
	a.noticeView.SetTextColor(ColorFg)
	a.noticeView.SetDynamicColors(true)
	a.noticeView.SetTextAlign(tview.AlignCenter)

	// Status bar
	chatStatus := tview.NewTextView()
	chatStatus.SetBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	chatStatus.SetTextColor(ColorTitle)
	chatStatus.SetTextAlign(tview.AlignCenter)
	chatStatus.SetText(" Enter:Send | Tab:Scroll | F1:Help | F8:Clear view | F6:Logout | F10:Quit ")

	// Layout
	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.receiverInput, 3, 0, true).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 3, 0, false).
		AddItem(a.noticeView, 1, 0, false).
		AddItem(chatStatus, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	// Track focus on chat view for scrolling
	chatViewFocused := false

	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			if chatViewFocused {
				chatViewFocused = false
				a.app.SetFocus(a.messageInput)
				return nil
			}
			a.logout()
			return nil
		case tcell.KeyTab:
			chatViewFocused = !chatViewFocused
			if chatViewFocused {
				a.app.SetFocus(a.chatView)
			} else {
				a.app.SetFocus(a.messageInput)
			}
			return nil
		case tcell.KeyF1:
			a.showHelp()
			return nil
		case tcell.KeyF6:
			a.logout()
			return nil
		case tcell.KeyF8:
			// Display-only reset: the store keeps everything and the next
			// snapshot brings it all back
			if a.engine != nil {
				a.engine.ClearView()
				a.showNotice("[gray]View cleared. New snapshots will repopulate it.[-]")
			}
			return nil
		case tcell.KeyF10:
			a.quit()
			return nil
		case tcell.KeyPgUp:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row-10, col)
			return nil
		case tcell.KeyPgDn:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row+10, col)
			return nil
		case tcell.KeyUp:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row-1, col)
				return nil
			}
		case tcell.KeyDown:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row+1, col)
				return nil
			}
		case tcell.KeyHome:
			if chatViewFocused {
				a.chatView.ScrollToBeginning()
				return nil
			}
		case tcell.KeyEnd:
			if chatViewFocused {
				a.chatView.ScrollToEnd()
				return nil
			}
		}
		return event
	})

	return mainFlex
}

func (a *App) sendMessage(receiver, text string) {
	if a.engine == nil {
		return
	}

	if err := a.engine.Send(receiver, text); err != nil {
		a.showNotice("[red]" + tview.Escape(err.Error()) + "[-]")
		return
	}

	a.showNotice("")
	a.messageInput.SetText("")
}

func (a *App) refreshChatView() {
	if a.chatView == nil || a.engine == nil {
		return
	}

	messages := a.engine.Messages()

	// Chat view width for centered date separators
	_, _, width, _ := a.chatView.GetInnerRect()
	if width < 10 {
		width = 80
	}

	a.chatView.Clear()
	var sb strings.Builder
	var lastDate string

	for _, msg := range messages {
		// Date separator on day change; pending messages carry no server
		// timestamp and never start one
		msgDate := ""
		if len(msg.Timestamp) >= 10 {
			msgDate = msg.Timestamp[:10]
		}

		if msgDate != "" && msgDate != lastDate {
			dateLabel := formatDateSeparator(msg.Timestamp)
			padding := (width - len(dateLabel)) / 2
			if padding < 0 {
				padding = 0
			}
			sb.WriteString(fmt.Sprintf("[gray]%s%s[-]\n", strings.Repeat(" ", padding), dateLabel))
			lastDate = msgDate
		}

		timeStr := "        "
		if len(msg.Timestamp) >= 19 {
			timeStr = msg.Timestamp[11:19]
		}

		statusIcon := "[green]✓[-]"
		if msg.Pending() {
			statusIcon = "[gray]○[-]"
		}

		// Outgoing = white, incoming = yellow
		if msg.Sender == a.currentUser {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] [white]→ %s: %s[-] %s\n",
				timeStr, tview.Escape(msg.Receiver), tview.Escape(msg.Text), statusIcon))
		} else {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] [yellow]← %s: %s[-] %s\n",
				timeStr, tview.Escape(msg.Sender), tview.Escape(msg.Text), statusIcon))
		}
	}

	if len(messages) == 0 {
		sb.WriteString("[gray]No messages yet.[-]\n")
	}

	a.chatView.SetText(sb.String())
	a.chatView.ScrollToEnd()
}
