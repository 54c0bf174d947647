package config

// defaultsYAML is the compiled-in seed layer for per-platform scheduler
// frequency, adapter rate delay, and engagement scoring weights. Operators
// override frequency per platform at runtime via the admin API; the scoring
// weights are fixed per platform by design (spec.md §4.8) and are not
// admin-editable.
const defaultsYAML = `
tiktok:
  frequency_hours: 4
  rate_delay_ms: 1500
  score_weights:
    views: 0.35
    likes: 0.25
    comments: 0.25
    shares: 0.15
instagram:
  frequency_hours: 6
  rate_delay_ms: 2000
  score_weights:
    likes: 0.40
    comments: 0.35
    shares: 0.25
linkedin:
  frequency_hours: 8
  rate_delay_ms: 2500
  score_weights:
    comments: 0.45
    shares: 0.35
    likes: 0.20
facebook:
  frequency_hours: 6
  rate_delay_ms: 2000
  score_weights:
    shares: 0.40
    comments: 0.35
    likes: 0.25
youtube:
  frequency_hours: 12
  rate_delay_ms: 3000
  score_weights:
    views: 0.50
    likes: 0.30
    comments: 0.20
x:
  frequency_hours: 2
  rate_delay_ms: 1000
  score_weights:
    shares: 0.40
    comments: 0.30
    likes: 0.30
`
