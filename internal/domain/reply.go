package domain

// HandoffMarker is the substring whose presence in a reply means a human
// has been promised to follow up. Both canned replies below contain it.
const HandoffMarker = "24 business hours"

// FallbackReply is sent when the answer backend fails.
const FallbackReply = "Sorry, I'm having trouble right now. Our team will reach out to you within 24 business hours."

// UnansweredReply is sent when the backend reports the question is not
// covered by the school information.
const UnansweredReply = "I don't have that information right now. Let me connect you with our team. Someone will get back to you within 24 business hours."
