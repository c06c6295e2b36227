package android

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Commands used to query the framework state. The output is filtered on the
// device to keep it small over adb, and grep not matching isn't an error.
const (
	cmdForeground  = `dumpsys activity activities | grep -E 'mResumedActivity|topResumedActivity|ResumedActivity:'; true`
	cmdOrientation = `dumpsys input | grep -m1 SurfaceOrientation; dumpsys display | grep -m1 mCurrentOrientation; true`
	cmdScreen      = `dumpsys power | grep -E 'mWakefulness=|Display Power|mScreenOn='; true`
)

var (
	reActivity           = regexp.MustCompile(`\bu[0-9]+ ([^/\s]+)/([^\s}]+)`)
	reSurfaceOrientation = regexp.MustCompile(`SurfaceOrientation:\s*([0-9]+)`)
	reCurrentOrientation = regexp.MustCompile(`mCurrentOrientation=([0-9]+)`)
	reWakefulness        = regexp.MustCompile(`mWakefulness=([A-Za-z]+)`)
)

// ParseForeground parses the package of the resumed activity from the output
// of dumpsys activity activities, e.g.,
//
//	mResumedActivity: ActivityRecord{2d3b0c6 u0 com.android.chrome/org.chromium.chrome.browser.ChromeTabbedActivity t1234}
func ParseForeground(out string) (pkg string, ok bool) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "ResumedActivity") {
			continue
		}
		if m := reActivity.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ParseOrientation parses the display rotation (0-3) from the output of
// dumpsys input, falling back to dumpsys display.
func ParseOrientation(out string) (rotation int, ok bool) {
	for _, re := range []*regexp.Regexp{reSurfaceOrientation, reCurrentOrientation} {
		if m := re.FindStringSubmatch(out); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n & 3, true
			}
		}
	}
	return 0, false
}

// ParseScreen parses whether the screen is on from the output of dumpsys
// power.
func ParseScreen(out string) (on bool, ok bool) {
	if m := reWakefulness.FindStringSubmatch(out); m != nil {
		return m[1] == "Awake", true
	}
	switch {
	case strings.Contains(out, "Display Power: state=ON"), strings.Contains(out, "mScreenOn=true"):
		return true, true
	case strings.Contains(out, "Display Power: state=OFF"), strings.Contains(out, "mScreenOn=false"):
		return false, true
	}
	return false, false
}

// ParseServices parses the output of service list into a map of service
// names to interface descriptors, e.g.,
//
//	24	SurfaceFlinger: [android.ui.ISurfaceComposer]
func ParseServices(out string) map[string]string {
	services := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if _, rest, ok := strings.Cut(line, "\t"); ok {
			line = rest
		} else if i := strings.IndexByte(line, ' '); i > 0 && isDigits(line[:i]) {
			line = strings.TrimSpace(line[i:])
		}
		name, iface, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		services[name] = strings.TrimSuffix(strings.TrimPrefix(iface, "["), "]")
	}
	return services
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
