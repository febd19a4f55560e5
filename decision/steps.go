package decision

import (
	"coachhub/onboard/models"
)

type stepKey struct {
	device  models.DeviceClass
	browser models.BrowserID
}

var (
	iosSafariSteps = []models.Step{
		{Order: 1, Title: "Tap Share", Description: "Tap the Share button in Safari's toolbar.", Icon: "share"},
		{Order: 2, Title: "Add to Home Screen", Description: "Scroll down and tap \"Add to Home Screen\".", Icon: "plus-square"},
		{Order: 3, Title: "Confirm", Description: "Tap \"Add\" in the top-right corner.", Icon: "check"},
	}

	androidMenuSteps = []models.Step{
		{Order: 1, Title: "Open the menu", Description: "Tap the three-dot menu in the top-right corner.", Icon: "more-vertical"},
		{Order: 2, Title: "Install app", Description: "Tap \"Install app\" or \"Add to Home screen\".", Icon: "download"},
		{Order: 3, Title: "Confirm", Description: "Tap \"Install\" to confirm.", Icon: "check"},
	}

	// defaultSteps is used when the administrator has not configured steps
	// for a device class. Lookups fall back to the (device, other) entry.
	defaultSteps = map[stepKey][]models.Step{
		{models.DeviceIOS, models.BrowserSafari}: iosSafariSteps,
		{models.DeviceIOS, models.BrowserOther}:  iosSafariSteps,

		{models.DeviceAndroid, models.BrowserChrome}: androidMenuSteps,
		{models.DeviceAndroid, models.BrowserSamsung}: {
			{Order: 1, Title: "Open the menu", Description: "Tap the menu icon at the bottom of the screen.", Icon: "menu"},
			{Order: 2, Title: "Add page to", Description: "Tap \"Add page to\" and choose \"Home screen\".", Icon: "plus-square"},
			{Order: 3, Title: "Confirm", Description: "Tap \"Add\" to confirm.", Icon: "check"},
		},
		{models.DeviceAndroid, models.BrowserFirefox}: {
			{Order: 1, Title: "Open the menu", Description: "Tap the three-dot menu next to the address bar.", Icon: "more-vertical"},
			{Order: 2, Title: "Install", Description: "Tap \"Install\" or \"Add to Home screen\".", Icon: "download"},
			{Order: 3, Title: "Confirm", Description: "Tap \"Add\" to place the app on your home screen.", Icon: "check"},
		},
		{models.DeviceAndroid, models.BrowserEdge}: {
			{Order: 1, Title: "Open the menu", Description: "Tap the three-dot menu at the bottom of the screen.", Icon: "more-horizontal"},
			{Order: 2, Title: "Add to phone", Description: "Tap \"Add to phone\".", Icon: "smartphone"},
			{Order: 3, Title: "Confirm", Description: "Tap \"Install\" to confirm.", Icon: "check"},
		},
		{models.DeviceAndroid, models.BrowserOpera}: {
			{Order: 1, Title: "Open the menu", Description: "Tap the three-dot menu in the top-right corner.", Icon: "more-vertical"},
			{Order: 2, Title: "Add to", Description: "Tap \"Add to...\" and then \"Home screen\".", Icon: "plus-square"},
			{Order: 3, Title: "Confirm", Description: "Tap \"Add\" to confirm.", Icon: "check"},
		},
		{models.DeviceAndroid, models.BrowserOther}: androidMenuSteps,

		{models.DeviceDesktop, models.BrowserChrome}: {
			{Order: 1, Title: "Find the install icon", Description: "Click the install icon at the right end of the address bar.", Icon: "monitor-down"},
			{Order: 2, Title: "Install", Description: "Click \"Install\" in the dialog that opens.", Icon: "download"},
		},
		{models.DeviceDesktop, models.BrowserEdge}: {
			{Order: 1, Title: "Open the menu", Description: "Click the \"...\" menu and choose Apps.", Icon: "more-horizontal"},
			{Order: 2, Title: "Install this site", Description: "Click \"Install this site as an app\".", Icon: "download"},
		},
		{models.DeviceDesktop, models.BrowserOther}: {
			{Order: 1, Title: "Use a supported browser", Description: "Open this page in Chrome or Edge to install it as an app.", Icon: "globe"},
		},
	}
)

// DefaultSteps returns the built-in step list for a device and browser.
func DefaultSteps(device models.DeviceClass, browser models.BrowserID) []models.Step {
	if steps, ok := defaultSteps[stepKey{device, browser}]; ok {
		return clone(steps)
	}
	if steps, ok := defaultSteps[stepKey{device, models.BrowserOther}]; ok {
		return clone(steps)
	}
	return clone(defaultSteps[stepKey{models.DeviceDesktop, models.BrowserOther}])
}

// stepsFor prefers administrator steps for the device class.
func stepsFor(in Input) []models.Step {
	switch in.Device {
	case models.DeviceAndroid:
		if len(in.Config.AndroidSteps) > 0 {
			return clone(in.Config.AndroidSteps)
		}
	case models.DeviceIOS:
		if len(in.Config.IOSSteps) > 0 {
			return clone(in.Config.IOSSteps)
		}
	}
	return DefaultSteps(in.Device, in.Browser)
}

func clone(steps []models.Step) []models.Step {
	return append([]models.Step(nil), steps...)
}
