package ui

import (
	"fmt"

	"duochat/client/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showAuthDialog() {
	// Form container
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" duochat ")
	form.SetTitleColor(ColorTitle)

	var loginField, passwordField *tview.InputField

	statusText := tview.NewTextView()
	statusText.SetBackgroundColor(ColorBg)
	statusText.SetTextColor(tcell.ColorRed)
	statusText.SetTextAlign(tview.AlignCenter)
	statusText.SetDynamicColors(true)

	loginField = tview.NewInputField()
	loginField.SetLabel("Login: ")
	loginField.SetFieldWidth(30)
	loginField.SetBackgroundColor(ColorBg)

	passwordField = tview.NewInputField()
	passwordField.SetLabel("Password: ")
	passwordField.SetFieldWidth(30)
	passwordField.SetMaskCharacter('*')
	passwordField.SetBackgroundColor(ColorBg)

	form.AddFormItem(loginField)
	form.AddFormItem(passwordField)

	form.AddButton("Login", func() {
		login := loginField.GetText()
		password := passwordField.GetText()
		if login == "" || password == "" {
			statusText.SetText("[red]Please enter login and password[-]")
			return
		}
		a.doAuth(login, password, statusText, false)
	})

	form.AddButton("Register", func() {
		login := loginField.GetText()
		password := passwordField.GetText()
		if login == "" || password == "" {
			statusText.SetText("[red]Please enter login and password[-]")
			return
		}
		a.doAuth(login, password, statusText, true)
	})

	form.AddButton("Quit", func() {
		a.app.Stop()
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	// Modal-like container
	width := 54
	height := 12

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(formFlex, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("auth", modal, true, true)
	a.app.SetFocus(form)
}

func (a *App) doAuth(login, password string, statusText *tview.TextView, register bool) {
	statusText.SetText("Connecting...")

	// Run connection in goroutine to avoid blocking UI
	go func() {
		a.client = protocol.NewClient()
		if err := a.client.Connect(a.serverAddr); err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("Connection failed: %v", err))
			})
			return
		}

		if register {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText("Registering...")
			})
			if err := a.client.Register(login, password); err != nil {
				a.app.QueueUpdateDraw(func() {
					statusText.SetText(fmt.Sprintf("Registration failed: %v", err))
				})
				a.client.Disconnect()
				return
			}
			a.app.QueueUpdateDraw(func() {
				statusText.SetText("Registered! Authenticating...")
			})
		} else {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText("Authenticating...")
			})
		}

		if err := a.client.Auth(login, password); err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("%v", err))
			})
			a.client.Disconnect()
			return
		}

		if err := a.startSession(login); err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("Subscription failed: %v", err))
			})
			a.endSession()
			return
		}

		a.app.QueueUpdateDraw(func() {
			a.showChatScreen()
		})
	}()
}
