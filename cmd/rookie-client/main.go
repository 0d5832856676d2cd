package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rookie/internal/aggregate"
	"rookie/internal/dashboard"
	"rookie/internal/domain"
	"rookie/pkg/rookie"
)

// Styles.
var (
	symbolStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	symbolHlStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	symbolWlStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	symbolWlHlStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	gainStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	capStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	tabStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	tabActiveStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	highlightBG     = lipgloss.Color("236")
)

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

const (
	tabWatchlist = "watchlist"
	tabGainers   = "gainers"
)

var tabs = append(append([]string(nil), aggregate.DatasetNames...), tabWatchlist, tabGainers)

type sortMode struct {
	label string
	field aggregate.SortField
	dir   aggregate.SortDir
}

var sortModes = []sortMode{
	{"default", aggregate.SortNone, aggregate.Desc},
	{"change", aggregate.SortChange, aggregate.Desc},
	{"price", aggregate.SortPrice, aggregate.Desc},
	{"mcap", aggregate.SortMcap, aggregate.Desc},
	{"name", aggregate.SortName, aggregate.Asc},
}

// Messages.
type tickMsg time.Time

type datasetMsg struct {
	tab       string
	version   uint64
	assets    []domain.Asset
	watched   []string
	err       error
	refreshed bool
}

type watchToggleMsg struct {
	id    string
	added bool
	err   error
}

type technicalsMsg struct {
	id   string
	text string
}

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model.
type model struct {
	client *rookie.Client
	logger *slog.Logger

	tab      int
	sortMode int
	version  uint64
	assets   []domain.Asset
	watched  map[string]bool
	status   string
	loadedAt time.Time

	selected int

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(c *rookie.Client, logger *slog.Logger) model {
	return model{client: c, logger: logger, watched: make(map[string]bool)}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.loadCmd(false))
}

// loadCmd fetches the current tab. With refresh set it first asks the
// server to run a cycle.
func (m model) loadCmd(refresh bool) tea.Cmd {
	c, tab, sm := m.client, tabs[m.tab], sortModes[m.sortMode]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if refresh {
			if _, err := c.Refresh(ctx); err != nil {
				return datasetMsg{tab: tab, err: err}
			}
		}
		wl, err := c.Watchlist(ctx)
		if err != nil {
			return datasetMsg{tab: tab, err: err}
		}
		if tab == tabWatchlist {
			return datasetMsg{tab: tab, assets: aggregate.Sort(wl.Assets, sm.field, sm.dir), watched: wl.IDs, refreshed: refresh}
		}
		ds, err := c.Dataset(ctx, tab, string(sm.field), string(sm.dir))
		if err != nil {
			return datasetMsg{tab: tab, err: err}
		}
		return datasetMsg{tab: tab, version: ds.Version, assets: ds.Assets, watched: wl.IDs, refreshed: refresh}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right":
			m.tab = (m.tab + 1) % len(tabs)
			m.selected = 0
			m.status = "loading..."
			return m, m.loadCmd(false)
		case "shift+tab", "left":
			m.tab = (m.tab + len(tabs) - 1) % len(tabs)
			m.selected = 0
			m.status = "loading..."
			return m, m.loadCmd(false)
		case "s":
			m.sortMode = (m.sortMode + 1) % len(sortModes)
			return m, m.loadCmd(false)
		case "r":
			m.status = "refreshing..."
			return m, m.loadCmd(true)
		case "up", "down":
			if len(m.assets) == 0 {
				return m, nil
			}
			if msg.String() == "up" && m.selected > 0 {
				m.selected--
			} else if msg.String() == "down" && m.selected < len(m.assets)-1 {
				m.selected++
			}
			m.viewport.SetContent(m.renderContent())
			m.ensureVisible()
			return m, nil
		case " ":
			a, ok := m.selectedAsset()
			if !ok {
				return m, nil
			}
			add := !m.watched[a.ID]
			if add {
				m.watched[a.ID] = true
			} else {
				delete(m.watched, a.ID)
			}
			m.viewport.SetContent(m.renderContent())
			c := m.client
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_, err := c.SetWatched(ctx, a.ID, add)
				return watchToggleMsg{id: a.ID, added: add, err: err}
			}
		case "t":
			a, ok := m.selectedAsset()
			if !ok {
				return m, nil
			}
			c := m.client
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				t, err := c.Technicals(ctx, a.ID)
				if err != nil {
					return technicalsMsg{id: a.ID, text: err.Error()}
				}
				return technicalsMsg{id: a.ID, text: formatTechnicals(a, t.Available, t.RSIDisplay, t.SMADisplay, t.Signal, t.Series.Synthetic)}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadCmd(false), tickCmd())

	case datasetMsg:
		if msg.tab != tabs[m.tab] {
			return m, nil
		}
		if msg.err != nil {
			m.logger.Warn("loading dataset", "tab", msg.tab, "error", msg.err)
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		m.assets = msg.assets
		if msg.version > 0 {
			m.version = msg.version
		}
		m.watched = make(map[string]bool, len(msg.watched))
		for _, id := range msg.watched {
			m.watched[id] = true
		}
		if m.selected >= len(m.assets) {
			m.selected = max(0, len(m.assets)-1)
		}
		m.loadedAt = time.Now()
		m.status = ""
		if msg.refreshed {
			m.status = "refreshed"
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case watchToggleMsg:
		if msg.err != nil {
			m.logger.Warn("watchlist toggle failed", "id", msg.id, "error", msg.err)
			// Revert optimistic update.
			if msg.added {
				delete(m.watched, msg.id)
			} else {
				m.watched[msg.id] = true
			}
			m.status = "watchlist update failed"
			if m.ready {
				m.viewport.SetContent(m.renderContent())
			}
		}
		return m, nil

	case technicalsMsg:
		m.status = msg.text
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) selectedAsset() (domain.Asset, bool) {
	if m.selected < 0 || m.selected >= len(m.assets) {
		return domain.Asset{}, false
	}
	return m.assets[m.selected], true
}

// ensureVisible scrolls the viewport so the selected line is visible.
func (m *model) ensureVisible() {
	line := m.selected + 1 // column header
	yOff := m.viewport.YOffset
	vpH := m.viewport.Height
	if line < yOff {
		m.viewport.SetYOffset(line)
	} else if line >= yOff+vpH {
		m.viewport.SetYOffset(line - vpH + 1)
	}
}

func formatTechnicals(a domain.Asset, ok bool, rsi, sma *float64, signal string, synthetic bool) string {
	if !ok || rsi == nil || sma == nil {
		return a.Symbol + ": not enough data"
	}
	s := fmt.Sprintf("%s  RSI(14) %.1f %s  SMA(14) %s", a.Symbol, *rsi, signal, dashboard.FormatPrice(*sma))
	if synthetic {
		s += "  (simulated series)"
	}
	return s
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var hb strings.Builder
	for i, t := range tabs {
		label := " " + t + " "
		if i == m.tab {
			hb.WriteString(tabActiveStyle.Render(label))
		} else {
			hb.WriteString(tabStyle.Render(label))
		}
	}
	info := fmt.Sprintf("  v%d  sort: %s ", m.version, sortModes[m.sortMode].label)
	if !m.loadedAt.IsZero() {
		info += " " + m.loadedAt.Format("15:04:05") + " "
	}
	headerBar := hb.String() + tabStyle.Render(padOrTrunc(info, m.width-lipgloss.Width(hb.String())))

	footerLeft := " q quit  tab next  s sort  r refresh  up/dn select  space watch  t technicals"
	if m.status != "" {
		footerLeft = " " + m.status
	}
	footerRight := fmt.Sprintf("%.0f%% ", m.viewport.ScrollPercent()*100)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("8")).
		Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-4s %-10s %-22s %14s %9s %12s", "#", "Symbol", "Name", "Price", "24h", "MCap")))
	b.WriteString("\n")

	if len(m.assets) == 0 {
		b.WriteString(dimStyle.Render("  (no assets)"))
		b.WriteString("\n")
		return b.String()
	}

	for i, a := range m.assets {
		hl := i == m.selected
		inWl := m.watched[a.ID]
		wlMark := " "
		if inWl {
			wlMark = "*"
		}
		symStyle := symbolStyle
		switch {
		case inWl && hl:
			symStyle = symbolWlHlStyle
		case inWl:
			symStyle = symbolWlStyle
		case hl:
			symStyle = symbolHlStyle
		}
		chgStyle := gainStyle
		if a.PriceChangePercent24h < 0 {
			chgStyle = lossStyle
		}
		sp := hlStyle(lipgloss.NewStyle(), hl).Render(" ")

		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf(" %s%-4d", wlMark, i+1)))
		b.WriteString(sp)
		b.WriteString(hlStyle(symStyle, hl).Render(fmt.Sprintf("%-10s", truncate(a.Symbol, 10))))
		b.WriteString(sp)
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("%-22s", truncate(a.Name, 22))))
		b.WriteString(sp)
		b.WriteString(hlStyle(priceStyle, hl).Render(fmt.Sprintf("%14s", dashboard.FormatPrice(a.CurrentPrice))))
		b.WriteString(sp)
		b.WriteString(hlStyle(chgStyle, hl).Render(fmt.Sprintf("%9s", dashboard.FormatChange(a.PriceChangePercent24h))))
		b.WriteString(sp)
		b.WriteString(hlStyle(capStyle, hl).Render(fmt.Sprintf("%12s", dashboard.FormatMarketCap(a.MarketCap))))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	if width < 0 {
		width = 0
	}
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	addr := "http://localhost:8080"
	if a := os.Getenv("ROOKIE_SERVER"); a != "" {
		addr = a
	}

	logPath := fmt.Sprintf("/tmp/rookie-client-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

	p := tea.NewProgram(
		initialModel(rookie.NewClient(addr), logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
