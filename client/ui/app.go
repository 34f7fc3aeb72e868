package ui

import (
	"errors"

	"duochat/client/engine"
	"duochat/client/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Color palette
var (
	ColorBg        = tcell.NewRGBColor(0, 0, 96)
	ColorFg        = tcell.ColorSilver
	ColorBorder    = tcell.NewRGBColor(0, 192, 192)
	ColorTitle     = tcell.ColorWhite
	ColorHighlight = tcell.ColorYellow
)

// App is the main application
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	client     *protocol.Client
	engine     *engine.Engine
	serverAddr string

	currentUser string

	chatView      *tview.TextView
	receiverInput *tview.InputField
	messageInput  *tview.InputField
	noticeView    *tview.TextView
}

// NewApp creates a new application instance
func NewApp(serverAddr string) *App {
	return &App{
		serverAddr: serverAddr,
	}
}

// Run starts the application
func (a *App) Run() error {
	a.app = tview.NewApplication()
	a.pages = tview.NewPages()

	// Create empty background
	background := tview.NewBox()
	background.SetBackgroundColor(tcell.NewRGBColor(64, 64, 64))
	a.pages.AddPage("background", background, true, true)

	// Show auth dialog on top
	a.showAuthDialog()

	return a.app.SetRoot(a.pages, true).EnableMouse(false).Run()
}

// startSession binds a freshly authenticated identity to a new sync engine
// and opens its subscription. The previous session, if any, must already be
// closed: one engine, one subscription, one identity.
func (a *App) startSession(user string) error {
	a.currentUser = user
	a.engine = engine.New(engine.NewRemoteStore(a.client), user, engine.Options{
		OnUpdate: func() {
			go a.app.QueueUpdateDraw(func() {
				a.refreshChatView()
			})
		},
		OnError: func(err error) {
			go a.app.QueueUpdateDraw(func() {
				a.showEngineNotice(err)
			})
		},
	})
	return a.engine.Start()
}

// endSession tears the active session down: subscription released first,
// then the connection. Stale snapshots must never reach the next identity.
func (a *App) endSession() {
	if a.engine != nil {
		a.engine.Close()
		a.engine = nil
	}
	if a.client != nil && a.client.IsConnected() {
		a.client.Disconnect()
	}
	a.client = nil
	a.currentUser = ""
}

func (a *App) showEngineNotice(err error) {
	switch {
	case errors.Is(err, engine.ErrSubscription):
		a.showNotice("[red]Live updates stopped. Shown history may be stale. Log in again to resume.[-]")
	case errors.Is(err, engine.ErrSendFailure):
		a.showNotice("[red]Message could not be delivered to the server. It is shown unconfirmed.[-]")
	default:
		a.showNotice("[red]" + tview.Escape(err.Error()) + "[-]")
	}
}

func (a *App) showNotice(text string) {
	if a.noticeView == nil {
		return
	}
	a.noticeView.SetText(text)
}

// logout closes the active session and returns to the auth dialog
func (a *App) logout() {
	a.endSession()
	a.chatView = nil
	a.receiverInput = nil
	a.messageInput = nil
	a.noticeView = nil
	a.pages.RemovePage("chat")

	background := tview.NewBox()
	background.SetBackgroundColor(tcell.NewRGBColor(64, 64, 64))
	a.pages.AddPage("background", background, true, true)
	a.showAuthDialog()
}

// quit exits the application
func (a *App) quit() {
	a.endSession()
	a.app.Stop()
}
