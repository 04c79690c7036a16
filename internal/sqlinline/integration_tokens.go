package sqlinline

const QSelectIntegrationToken = `--sql 0fdc4749-76cd-44f7-ae6b-4307983ee09f
select token
from integration_tokens
where provider = $1::text and user_id = $2::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 118ccbbb-96c2-4897-a67c-1a68d634603c
insert into integration_tokens (id, provider, user_id, token, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, now(), now())
on conflict (provider, user_id) do update set
    token = excluded.token,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql bf9eb6a3-5de6-4859-9b92-ef8464d1a69e
delete from integration_tokens
where provider = $1::text and user_id = $2::text;
`
