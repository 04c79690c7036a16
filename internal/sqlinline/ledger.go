package sqlinline

const QSelectBalance = `--sql 80b32c4f-6beb-438d-a1e5-f5ea869d6d70
select balance_tokens
from credit_balances
where user_id = $1::text
limit 1;
`

// QReserveTokens is the single atomic check-then-debit: the where clause
// rejects the update when the balance cannot cover the amount, so the row
// never goes negative under concurrent reservations.
const QReserveTokens = `--sql fb29bf3c-c77e-41b0-81bf-3a0c51481264
update credit_balances
set balance_tokens = balance_tokens - $2::bigint, updated_at = now()
where user_id = $1::text and balance_tokens >= $2::bigint
returning balance_tokens;
`

const QRefundTokens = `--sql 20d5b868-b9e5-438f-8a3e-bc49a3363052
update credit_balances
set balance_tokens = balance_tokens + $2::bigint, updated_at = now()
where user_id = $1::text;
`

const QGrantTokens = `--sql ada8b93a-7bb1-4970-94e0-fed02aa43475
insert into credit_balances (user_id, balance_tokens, created_at, updated_at)
values ($1::text, $2::bigint, now(), now())
on conflict (user_id) do update set
    balance_tokens = credit_balances.balance_tokens + excluded.balance_tokens,
    updated_at = now()
returning balance_tokens;
`
