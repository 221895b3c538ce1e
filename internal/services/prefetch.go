package services

import (
	"strings"

	"github.com/mssola/user_agent"
)

// Link unfurlers and preview fetchers seen in chat apps, mail scanners and social sites.
var crawlerSignatures = []string{
	"slackbot",
	"discordbot",
	"twitterbot",
	"facebookexternalhit",
	"facebot",
	"linkedinbot",
	"whatsapp",
	"telegrambot",
	"skypeuripreview",
	"microsoftpreview",
	"teamsbot",
	"googlebot",
	"bingbot",
	"bingpreview",
	"applebot",
	"embedly",
	"pinterestbot",
	"redditbot",
	"mastodon",
	"iframely",
	"vkshare",
	"outlook",
	"proofpoint",
	"mimecast",
	"barracuda",
	"google-read-aloud",
	"headlesschrome",
}

var prefetchHints = []string{"prefetch", "prerender", "preview"}

type AutomationDetector interface {
	IsAutomated(caller Caller) bool
}

// PrefetchDetector spots crawlers and speculative loads so they can see a link
// without spending one of its clicks.
type PrefetchDetector struct {
	signatures []string
}

func NewPrefetchDetector(extra ...string) *PrefetchDetector {
	sigs := append([]string{}, crawlerSignatures...)
	for _, s := range extra {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sigs = append(sigs, s)
		}
	}
	return &PrefetchDetector{signatures: sigs}
}

func (d *PrefetchDetector) IsAutomated(caller Caller) bool {
	purpose := strings.ToLower(caller.Purpose)
	for _, hint := range prefetchHints {
		if strings.Contains(purpose, hint) {
			return true
		}
	}

	if caller.UserAgent == "" {
		return false
	}

	lowered := strings.ToLower(caller.UserAgent)
	for _, sig := range d.signatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}

	return user_agent.New(caller.UserAgent).Bot()
}
