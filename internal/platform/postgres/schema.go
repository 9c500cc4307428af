package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the canonical DDL. Applied idempotently at startup; the
// integration suites apply it to fresh containers.
const Schema = `
CREATE TABLE IF NOT EXISTS members (
	id UUID PRIMARY KEY,
	sha_number TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	middle_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL,
	national_id TEXT NOT NULL UNIQUE,
	date_of_birth TIMESTAMPTZ NOT NULL,
	gender TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	physical_address TEXT NOT NULL DEFAULT '',
	county_code TEXT NOT NULL,
	subcounty TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	approved_by TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_members_status ON members (status);
CREATE INDEX IF NOT EXISTS idx_members_county ON members (county_code);

CREATE TABLE IF NOT EXISTS employers (
	id UUID PRIMARY KEY,
	company_name TEXT NOT NULL,
	registration_number TEXT NOT NULL UNIQUE,
	tax_pin TEXT NOT NULL UNIQUE,
	industry TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	county_code TEXT NOT NULL,
	contact_person_name TEXT NOT NULL DEFAULT '',
	contact_person_phone TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	approved_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS employments (
	employer_id UUID NOT NULL REFERENCES employers (id),
	member_id UUID NOT NULL REFERENCES members (id),
	employee_number TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	job_title TEXT NOT NULL DEFAULT '',
	monthly_salary NUMERIC(14,2) NOT NULL,
	contribution_rate NUMERIC(6,3) NOT NULL,
	date_joined TIMESTAMPTZ NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (employer_id, member_id)
);

CREATE TABLE IF NOT EXISTS hospitals (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	registration_number TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	level INT NOT NULL CHECK (level BETWEEN 1 AND 6),
	email TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	county_code TEXT NOT NULL,
	subcounty TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL DEFAULT '',
	license_expiry_date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	approved_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS hospital_staff (
	id UUID PRIMARY KEY,
	hospital_id UUID NOT NULL REFERENCES hospitals (id),
	staff_number TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL,
	role TEXT NOT NULL,
	license_number TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	date_joined TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_staff_number
	ON hospital_staff (staff_number) WHERE staff_number <> '';

CREATE TABLE IF NOT EXISTS contributions (
	id UUID PRIMARY KEY,
	member_id UUID NOT NULL REFERENCES members (id),
	employer_id UUID REFERENCES employers (id),
	type TEXT NOT NULL,
	method TEXT NOT NULL,
	amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	period DATE NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	UNIQUE (member_id, period)
);
CREATE INDEX IF NOT EXISTS idx_contributions_period ON contributions (period);

CREATE TABLE IF NOT EXISTS otps (
	id UUID PRIMARY KEY,
	member_id UUID NOT NULL REFERENCES members (id),
	code TEXT NOT NULL,
	purpose TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	used_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_otps_member_purpose ON otps (member_id, purpose);

CREATE TABLE IF NOT EXISTS hospital_visits (
	id UUID PRIMARY KEY,
	visit_number TEXT NOT NULL UNIQUE,
	member_id UUID NOT NULL REFERENCES members (id),
	hospital_id UUID NOT NULL REFERENCES hospitals (id),
	attending_staff_id UUID,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	checked_in_at TIMESTAMPTZ,
	checked_out_at TIMESTAMPTZ,
	chief_complaint TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	diagnosis TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_visits_member ON hospital_visits (member_id);
CREATE INDEX IF NOT EXISTS idx_visits_hospital ON hospital_visits (hospital_id);

CREATE TABLE IF NOT EXISTS medicines (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	generic_name TEXT NOT NULL DEFAULT '',
	code TEXT NOT NULL UNIQUE,
	form TEXT NOT NULL DEFAULT '',
	strength TEXT NOT NULL DEFAULT '',
	unit_price NUMERIC(14,2) NOT NULL DEFAULT 0,
	requires_prescription BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS pharmacy_stock (
	id UUID PRIMARY KEY,
	hospital_id UUID NOT NULL REFERENCES hospitals (id),
	medicine_id UUID NOT NULL REFERENCES medicines (id),
	batch_number TEXT NOT NULL,
	current_stock INT NOT NULL CHECK (current_stock >= 0),
	minimum_level INT NOT NULL DEFAULT 0,
	maximum_level INT NOT NULL DEFAULT 0,
	expiry_date DATE NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (hospital_id, medicine_id, batch_number)
);

CREATE TABLE IF NOT EXISTS prescriptions (
	id UUID PRIMARY KEY,
	prescription_number TEXT NOT NULL UNIQUE,
	visit_id UUID NOT NULL REFERENCES hospital_visits (id),
	prescribed_by UUID,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	collected_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS prescription_items (
	prescription_id UUID NOT NULL REFERENCES prescriptions (id),
	medicine_id UUID NOT NULL REFERENCES medicines (id),
	quantity_prescribed INT NOT NULL CHECK (quantity_prescribed > 0),
	quantity_dispensed INT NOT NULL DEFAULT 0
		CHECK (quantity_dispensed >= 0 AND quantity_dispensed <= quantity_prescribed),
	dosage TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (prescription_id, medicine_id)
);

CREATE TABLE IF NOT EXISTS claims (
	id UUID PRIMARY KEY,
	claim_number TEXT NOT NULL UNIQUE,
	visit_id UUID NOT NULL REFERENCES hospital_visits (id),
	member_id UUID NOT NULL REFERENCES members (id),
	hospital_id UUID NOT NULL REFERENCES hospitals (id),
	type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount_claimed NUMERIC(14,2) NOT NULL CHECK (amount_claimed > 0),
	amount_approved NUMERIC(14,2),
	status TEXT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL,
	reviewed_at TIMESTAMPTZ,
	reviewed_by TEXT NOT NULL DEFAULT '',
	paid_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims (status);
CREATE INDEX IF NOT EXISTS idx_claims_hospital ON claims (hospital_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	actor TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	subject_type TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	ip_address TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_logs (subject_type, subject_id);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id UUID PRIMARY KEY,
	subject_type TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
	ON audit_outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	recipient TEXT NOT NULL,
	type TEXT NOT NULL,
	method TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	sent_at TIMESTAMPTZ,
	read_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
