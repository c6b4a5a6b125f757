package fetch

import "testing"

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name string
		page RenderedPage
		want bool
	}{
		{
			name: "cloudflare interstitial title",
			page: RenderedPage{
				Title: "Just a moment...",
				Text:  "Checking your browser before accessing willowcreek.example",
			},
			want: true,
		},
		{
			name: "checking your browser title",
			page: RenderedPage{Title: "Checking your browser - willowcreek.example"},
			want: true,
		},
		{
			name: "captcha keyword on short page",
			page: RenderedPage{
				Title: "willowcreek.example",
				Text:  "Please verify you are human to continue.",
			},
			want: true,
		},
		{
			name: "recaptcha iframe",
			page: RenderedPage{
				Title: "Contact Us",
				HTML:  `<html><body><iframe src="https://www.google.com/recaptcha/api2/anchor"></iframe></body></html>`,
			},
			want: true,
		},
		{
			name: "normal community page",
			page: RenderedPage{
				Title: "Willow Creek Apartments",
				Text:  "Luxury one and two bedroom apartments. Pet friendly. Schedule a tour today.",
				HTML:  `<html><body><h1>Willow Creek</h1></body></html>`,
			},
			want: false,
		},
		{
			name: "long page mentioning security is not a challenge",
			page: RenderedPage{
				Title: "Resident Services",
				Text:  padText("Our gated community offers a security check at the entrance. ", 5000),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectChallenge(tt.page); got != tt.want {
				t.Errorf("detectChallenge() = %v, want %v", got, tt.want)
			}
		})
	}
}

func padText(s string, minLen int) string {
	out := s
	for len(out) < minLen {
		out += s
	}
	return out
}
