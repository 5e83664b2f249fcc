package transport

import (
	"encoding/json"
	"testing"

	"leadflow_backend/internal/leads/repository"
)

func TestTimelineDetail(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		title     string
		metadata  string
		want      string
	}{
		{
			name:      "lead created with campaign",
			eventType: repository.TimelineLeadCreated,
			metadata:  `{"source":"meta_ads","campaign_name":"Beira-Mar"}`,
			want:      "Lead captured from meta_ads (Beira-Mar)",
		},
		{
			name:      "lead created without campaign",
			eventType: repository.TimelineLeadCreated,
			metadata:  `{"source":"webhook","campaign_name":""}`,
			want:      "Lead captured from webhook",
		},
		{
			name:      "assignment",
			eventType: repository.TimelineLeadAssigned,
			metadata:  `{"queue_name":"Plantao","via":"rule","redistribution":false}`,
			want:      `Assigned from queue "Plantao" via rule`,
		},
		{
			name:      "redistribution",
			eventType: repository.TimelineLeadAssigned,
			metadata:  `{"queue_name":"Plantao","via":"fallback","redistribution":true}`,
			want:      `Redistributed to queue "Plantao" via fallback`,
		},
		{
			name:      "first response",
			eventType: repository.TimelineFirstResponse,
			metadata:  `{"seconds":300,"channel":"whatsapp"}`,
			want:      "First response via whatsapp after 5m0s",
		},
		{
			name:      "sla warning",
			eventType: repository.TimelineSLAWarning,
			metadata:  `{"status":"warning","seconds_elapsed":660}`,
			want:      "No response for 11m0s",
		},
		{
			name:      "deal status change",
			eventType: repository.TimelineDealStatusChanged,
			metadata:  `{"old_status":"open","new_status":"won"}`,
			want:      "Deal moved from open to won",
		},
		{
			name:      "title-only event",
			eventType: repository.TimelineWhatsAppMessageSent,
			title:     "WhatsApp message sent",
			metadata:  `{}`,
			want:      "WhatsApp message sent",
		},
		{
			name:      "empty metadata falls back to title",
			eventType: repository.TimelineLeadCreated,
			title:     "Lead created",
			metadata:  `{}`,
			want:      "Lead created",
		},
		{
			name:      "malformed metadata falls back to title",
			eventType: repository.TimelineFirstResponse,
			title:     "First response recorded",
			metadata:  `not-json`,
			want:      "First response recorded",
		},
		{
			name:      "unknown event type falls back to title",
			eventType: "imported_legacy_row",
			title:     "Imported",
			metadata:  `{"anything":1}`,
			want:      "Imported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := repository.TimelineEvent{
				EventType: tt.eventType,
				Title:     tt.title,
				Metadata:  json.RawMessage(tt.metadata),
			}
			if got := TimelineDetail(event); got != tt.want {
				t.Errorf("TimelineDetail() = %q, want %q", got, tt.want)
			}
		})
	}
}
