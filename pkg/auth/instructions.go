package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowRequestDataGuide prints how to copy a session's request data from a
// browser
func ShowRequestDataGuide(w io.Writer) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "REQUEST DATA EXTRACTION GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The scraper replays the requests your browser makes when it loads a")
	fmt.Fprintln(w, "conversation. It needs the cookie header and a handful of form fields.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Log in to https://www.facebook.com/messages in your browser")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools (F12, or Cmd+Option+I on Mac) and select")
	fmt.Fprintln(w, "        the 'Network' tab")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Open any conversation, then find the POST request to")
	fmt.Fprintln(w, "        'thread_info.php' in the request list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Copy into a text file, one 'name: value' per line:")
	fmt.Fprintln(w, "        - the 'cookie' request header")
	fmt.Fprintln(w, "        - the form fields __user, __a, __dyn, __req, fb_dtsg and __rev")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 5: Run 'fbscraper auth login --name <account> --file <that file>'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SECURITY WARNING:")
	fmt.Fprintln(w, "   - The cookie gives FULL access to your account")
	fmt.Fprintln(w, "   - NEVER share it with anyone")
	fmt.Fprintln(w, "   - The session expires; repeat these steps when requests start failing")
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}
