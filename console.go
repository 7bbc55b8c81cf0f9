package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// console renders pipeline and AI events to a raw-mode terminal.
// Interim transcripts redraw in place; everything else appends.
type console struct {
	styInterim lipgloss.Style
	styFinal   lipgloss.Style
	styAnswer  lipgloss.Style
	styErr     lipgloss.Style
	styStatus  lipgloss.Style
	styLabel   lipgloss.Style

	interimShown bool
}

func newConsole() *console {
	return &console{
		styInterim: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		styFinal:   lipgloss.NewStyle().Foreground(lipgloss.Color("51")),
		styAnswer:  lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		styErr:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		styStatus:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		styLabel:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
	}
}

// rawNewlines makes \n safe for a terminal in raw mode.
func rawNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func (c *console) clearInterim() {
	if c.interimShown {
		fmt.Print("\r\x1b[K")
		c.interimShown = false
	}
}

func (c *console) Interim(text string) {
	fmt.Print("\r\x1b[K" + c.styInterim.Render(clip(text, 120)))
	c.interimShown = true
}

func (c *console) Final(text string) {
	c.clearInterim()
	fmt.Print("\r\x1b[K" + c.styFinal.Render(clip(text, 120)) + "\r\n")
}

func (c *console) BeginAnswer(name string) {
	c.clearInterim()
	fmt.Print(c.styLabel.Render(name+">") + " ")
}

func (c *console) Chunk(text string) {
	fmt.Print(c.styAnswer.Render(rawNewlines(text)))
}

func (c *console) EndAnswer() {
	fmt.Print("\r\n")
}

func (c *console) Status(msg string) {
	c.clearInterim()
	fmt.Print(c.styStatus.Render(msg) + "\r\n")
}

func (c *console) Error(msg string) {
	c.clearInterim()
	fmt.Print(c.styErr.Render("Error: "+msg) + "\r\n")
}

func (c *console) Help(providerName string, persistent bool) {
	mode := "single-turn"
	if persistent {
		mode = "persistent"
	}
	c.Status(fmt.Sprintf("provider=%s mode=%s | space: start/stop capture, p: toggle history, c: clear history, q: quit", providerName, mode))
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
